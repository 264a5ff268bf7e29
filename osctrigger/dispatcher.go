// Package osctrigger lets a lighting desk or control surface drive runs over OSC.
package osctrigger

import (
	"fmt"
	"math"

	"github.com/hypebeast/go-osc/osc"
	"github.com/robmorgan/lightplan/logger"
	"github.com/sirupsen/logrus"
)

// OSC addresses understood by the Dispatcher.
const (
	AddressGo     = "/lightplan/go"
	AddressStop   = "/lightplan/stop"
	AddressAdjust = "/lightplan/adjust"
	AddressNudge  = "/lightplan/nudge"
)

// Controller is what OSC messages act on.
type Controller interface {
	StartRun() error
	StopRun()
	// SetRuntimeAdjust replaces the runtime adjustment, in milliseconds.
	SetRuntimeAdjust(ms int64)
	// NudgeRuntime moves the runtime adjustment by deltaMs.
	NudgeRuntime(deltaMs int64)
}

// Dispatcher routes OSC packets to a Controller.
type Dispatcher struct {
	ctrl Controller
	log  *logrus.Entry
}

// NewDispatcher creates a dispatcher acting on ctrl.
func NewDispatcher(ctrl Controller) *Dispatcher {
	return &Dispatcher{
		ctrl: ctrl,
		log:  logger.GetProjectLogger().WithField("component", "osc"),
	}
}

// Dispatch implements osc.Dispatcher. Bundles are unpacked and their messages handled in order.
func (d *Dispatcher) Dispatch(packet osc.Packet) {
	switch packet := packet.(type) {
	case *osc.Message:
		d.handle(packet)
	case *osc.Bundle:
		for _, msg := range packet.Messages {
			d.handle(msg)
		}
		for _, bundle := range packet.Bundles {
			d.Dispatch(bundle)
		}
	}
}

func (d *Dispatcher) handle(msg *osc.Message) {
	if msg == nil {
		return
	}
	d.log.Debugf("OSC message: %s", msg)

	switch msg.Address {
	case AddressGo:
		// A button sends 1 on press and 0 on release; only act on the press.
		if len(msg.Arguments) > 0 {
			if v, err := argToFloat(msg.Arguments[0]); err == nil && v == 0 {
				return
			}
		}
		if err := d.ctrl.StartRun(); err != nil {
			d.log.Errorf("Could not start run: %v", err)
		}
	case AddressStop:
		d.ctrl.StopRun()
	case AddressAdjust, AddressNudge:
		if len(msg.Arguments) == 0 {
			d.log.Errorf("%s needs an argument", msg.Address)
			return
		}
		ms, err := argToMs(msg.Arguments[0])
		if err != nil {
			d.log.Errorf("%s: %v", msg.Address, err)
			return
		}
		if msg.Address == AddressAdjust {
			d.ctrl.SetRuntimeAdjust(ms)
		} else {
			d.ctrl.NudgeRuntime(ms)
		}
	default:
		d.log.Debugf("Ignoring OSC address %s", msg.Address)
	}
}

// argToMs reads an adjustment: integers are milliseconds, floats are seconds.
func argToMs(arg interface{}) (int64, error) {
	switch v := arg.(type) {
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case float32:
		return int64(math.Round(float64(v) * 1000)), nil
	case float64:
		return int64(math.Round(v * 1000)), nil
	default:
		return 0, fmt.Errorf("unsupported argument type %T", arg)
	}
}

func argToFloat(arg interface{}) (float64, error) {
	switch v := arg.(type) {
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("unsupported argument type %T", arg)
	}
}
