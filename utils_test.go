package reroll

import (
	"os"
	"testing"
	"time"

	"github.com/inconshreveable/log15"
	fakeclock "k8s.io/utils/clock/testing"
)

var l = log15.New()

func tmpDir(t *testing.T) string {
	dir, err := os.MkdirTemp("", "reroll_test")
	if err != nil {
		panic(err)
	}
	t.Cleanup(func() {
		os.RemoveAll(dir)
	})
	return dir
}

func testClock() *fakeclock.FakeClock {
	return fakeclock.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
}
