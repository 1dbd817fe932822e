package linear_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"go.trai.ch/petal/internal/adapters/linear"
	"go.trai.ch/petal/internal/core/domain"
)

func TestFactory_Renderer(t *testing.T) {
	var stdout, stderr bytes.Buffer
	r := linear.NewFactory().Renderer(&stdout, &stderr, false)
	if r == nil {
		t.Fatal("Expected non-nil renderer")
	}

	start := time.Now()
	r.OnStepStart("span1", "Checkout", start)
	r.OnStepComplete("span1", start.Add(time.Second), domain.StepPassed, nil)

	if strings.Contains(stderr.String(), "\x1b[") {
		t.Errorf("Expected no ANSI codes without color, got: %q", stderr.String())
	}
}

func TestFactory_RendererWithColor(t *testing.T) {
	var stdout, stderr bytes.Buffer
	r := linear.NewFactory().Renderer(&stdout, &stderr, true)

	start := time.Now()
	r.OnStepStart("span1", "Checkout", start)
	r.OnStepComplete("span1", start.Add(time.Second), domain.StepPassed, nil)

	if !strings.Contains(stderr.String(), "\x1b[") {
		t.Errorf("Expected ANSI codes with color, got: %q", stderr.String())
	}
}
