package ristretto_test

import (
	"testing"

	"github.com/Strob0t/GovForge/internal/adapter/ristretto"
	"github.com/Strob0t/GovForge/internal/port/cache/cachetest"
)

func TestRistretto_Compliance(t *testing.T) {
	c, err := ristretto.New(1 << 20)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	cachetest.Run(t, c, c.Wait)
}
