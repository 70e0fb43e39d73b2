package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/anisahjamin/CPC357-Assignment2/internal/mqtt"
)

const adcMax = 4095

// sensorSim produces readings shaped like the ESP32 rain sensor: a 12-bit
// ADC value that drops when the plate is wet.
type sensorSim struct {
	rnd       *rand.Rand
	value     float64
	step      float64
	threshold float64
	device    string
	seq       int
}

func (s *sensorSim) next() map[string]any {
	s.seq++
	s.value += (s.rnd.Float64()*2 - 1) * s.step
	if s.value < 0 {
		s.value = 0
	}
	if s.value > adcMax {
		s.value = adcMax
	}
	status := "no rain"
	if s.value < s.threshold {
		status = "rain"
	}
	return map[string]any{
		"rain_value": int(s.value),
		"status":     status,
		"device":     s.device,
		"seq":        s.seq,
	}
}

func newSimulateCmd() *cobra.Command {
	var (
		topic     string
		interval  time.Duration
		count     int
		start     float64
		step      float64
		threshold float64
		device    string
		seed      uint64
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Publish synthetic sensor readings until interrupted",
		Example: `  raintool simulate --interval 2s
  raintool simulate --count 100 --interval 100ms --start 1500`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if interval <= 0 {
				return errors.New("--interval must be positive")
			}
			c := fromCmd(cmd)
			if topic == "" {
				topic = c.cfg.MQTTTopic
			}
			if seed == 0 {
				seed = uint64(time.Now().UnixNano())
			}
			sim := &sensorSim{
				rnd:       rand.New(rand.NewPCG(seed, seed>>1)),
				value:     start,
				step:      step,
				threshold: threshold,
				device:    device,
			}

			clientID := fmt.Sprintf("%s-sim-%s", c.cfg.MQTTClientID, uuid.NewString()[:8])
			pub, err := mqtt.NewPublisher(c.cfg, clientID, c.logger)
			if err != nil {
				return err
			}
			defer pub.Disconnect()

			ctx := cmd.Context()
			if err := pub.Connect(ctx); err != nil {
				return err
			}
			c.logger.Info("simulating sensor", "topic", topic, "interval", interval, "device", device)

			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for sent := 0; count <= 0 || sent < count; sent++ {
				payload, err := json.Marshal(sim.next())
				if err != nil {
					return err
				}
				if err := pub.Publish(ctx, topic, payload); err != nil {
					return err
				}
				c.logger.Debug("published reading", "payload", string(payload))
				if count > 0 && sent+1 == count {
					break
				}
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published %d reading(s) to %s\n", sim.seq, topic)
			return nil
		},
	}
	cmd.Flags().StringVar(&topic, "topic", "", "topic to publish on (default MQTT_TOPIC)")
	cmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "time between readings")
	cmd.Flags().IntVar(&count, "count", 0, "stop after this many readings (0 runs until interrupted)")
	cmd.Flags().Float64Var(&start, "start", 3000, "initial ADC value")
	cmd.Flags().Float64Var(&step, "step", 250, "largest change between two readings")
	cmd.Flags().Float64Var(&threshold, "threshold", 2000, "ADC values below this report rain")
	cmd.Flags().StringVar(&device, "device", "esp32-sim", "device field of each reading")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed (0 picks one from the clock)")
	return cmd
}
