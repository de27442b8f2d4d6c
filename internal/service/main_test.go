package service

import (
	"io"
	"os"
	"testing"

	"github.com/ignatzorin/omnimarket-backend/internal/logger"
)

func TestMain(m *testing.M) {
	logger.Log.SetOutput(io.Discard)
	os.Exit(m.Run())
}
