package main

import (
	"encoding/json"
	"math/rand/v2"
	"testing"

	"github.com/anisahjamin/CPC357-Assignment2/internal/modules/rain/ingest"
	"github.com/anisahjamin/CPC357-Assignment2/internal/modules/rain/types"
)

func TestSensorSim_StaysInRangeAndDecodes(t *testing.T) {
	sim := &sensorSim{
		rnd:       rand.New(rand.NewPCG(7, 3)),
		value:     100,
		step:      400,
		threshold: 2000,
		device:    "esp32-test",
	}
	for i := 1; i <= 500; i++ {
		reading := sim.next()
		payload, err := json.Marshal(reading)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		fields, err := ingest.Decode(payload)
		if err != nil {
			t.Fatalf("reading %d %s rejected: %v", i, payload, err)
		}

		r := types.Reading{Fields: fields}
		v := r.RainValue()
		if v == nil || *v < 0 || *v > adcMax {
			t.Fatalf("reading %d rain_value = %v; want within [0, %d]", i, v, adcMax)
		}
		status, _ := r.Status()
		wantStatus := "no rain"
		if *v < sim.threshold {
			wantStatus = "rain"
		}
		if status != wantStatus {
			t.Errorf("reading %d value %v status = %q; want %q", i, *v, status, wantStatus)
		}
		if reading["seq"] != i {
			t.Errorf("seq = %v; want %d", reading["seq"], i)
		}
	}
}

func TestSimulate_RejectsBadInterval(t *testing.T) {
	setupEnv(t)
	if _, err := execute(t, "simulate", "--interval", "0s"); err == nil {
		t.Fatal("simulate --interval 0s error = nil; want error")
	}
}
