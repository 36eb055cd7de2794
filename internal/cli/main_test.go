package cli

import (
	"os"
	"testing"

	"github.com/worace/sluice/pipeline"
)

func TestMain(m *testing.M) {
	pipeline.Init()
	os.Exit(m.Run())
}
