package encoder

import (
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/cjeanneret/geekdrive/internal/hw/gpio"
	"github.com/cjeanneret/geekdrive/internal/logic/drive"
)

type adcDriver struct {
	gpio.MockDriver
	fail error
}

func (d *adcDriver) ReadAnalog(channel int) (int, error) {
	if d.fail != nil {
		return 0, d.fail
	}
	return d.MockDriver.ReadAnalog(channel)
}

func TestReflective_ReadsConfiguredChannels(t *testing.T) {
	drv := &adcDriver{}
	drv.Analog = map[int]int{4: 120, 5: 870}
	r := NewReflective(drv, 4, 5)

	var _ drive.RawReader = r
	if v, err := r.ReadRaw(drive.Left); err != nil || v != 120 {
		t.Errorf("left = %d, %v; want 120", v, err)
	}
	if v, err := r.ReadRaw(drive.Right); err != nil || v != 870 {
		t.Errorf("right = %d, %v; want 870", v, err)
	}
}

func TestReflective_WrapsDriverError(t *testing.T) {
	drv := &adcDriver{fail: errors.New("spi closed")}
	r := NewReflective(drv, 0, 1)
	_, err := r.ReadRaw(drive.Right)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "right encoder ADC1") || !strings.Contains(err.Error(), "spi closed") {
		t.Errorf("error = %q", err)
	}
}

func TestReflective_RejectsOutOfRange(t *testing.T) {
	drv := &adcDriver{}
	drv.Analog = map[int]int{0: 2048}
	r := NewReflective(drv, 0, 1)
	if _, err := r.ReadRaw(drive.Left); err == nil {
		t.Fatal("expected out-of-range error")
	}
}
