package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/anisahjamin/CPC357-Assignment2/internal/mqtt"
)

func newPublishCmd() *cobra.Command {
	var (
		topic   string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish one test reading on the sensor topic",
		Example: `  raintool publish --rain-value 812 --status rain
  raintool publish --status "no rain" --field device=esp32-02
  raintool publish --raw 'not json'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := fromCmd(cmd)

			payload, err := buildPayload(cmd.Flags())
			if err != nil {
				return err
			}
			if topic == "" {
				topic = c.cfg.MQTTTopic
			}

			clientID := fmt.Sprintf("%s-raintool-%s", c.cfg.MQTTClientID, uuid.NewString()[:8])
			pub, err := mqtt.NewPublisher(c.cfg, clientID, c.logger)
			if err != nil {
				return err
			}
			defer pub.Disconnect()

			ctx, cancel := contextWithTimeout(cmd, timeout)
			defer cancel()
			if err := pub.Connect(ctx); err != nil {
				return err
			}
			if err := pub.Publish(ctx, topic, payload); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published to %s: %s\n", topic, payload)
			return nil
		},
	}
	cmd.Flags().Float64("rain-value", 0, "rain_value of the reading (omitted when not set)")
	cmd.Flags().String("status", "", "status label of the reading (omitted when not set)")
	cmd.Flags().StringVar(&topic, "topic", "", "topic to publish on (default MQTT_TOPIC)")
	cmd.Flags().StringToString("field", nil, "extra pass-through field as key=value (repeatable)")
	cmd.Flags().String("raw", "", "publish this payload verbatim instead of building a reading")
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Second, "connect and publish timeout")
	cmd.MarkFlagsMutuallyExclusive("raw", "rain-value")
	cmd.MarkFlagsMutuallyExclusive("raw", "status")
	cmd.MarkFlagsMutuallyExclusive("raw", "field")
	return cmd
}

// buildPayload encodes the reading described by the flags. Fields whose
// flag was not given are left out.
func buildPayload(flags *pflag.FlagSet) ([]byte, error) {
	if flags.Changed("raw") {
		raw, err := flags.GetString("raw")
		return []byte(raw), err
	}
	fields, err := flags.GetStringToString("field")
	if err != nil {
		return nil, err
	}
	reading := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		reading[k] = v
	}
	if flags.Changed("rain-value") {
		v, err := flags.GetFloat64("rain-value")
		if err != nil {
			return nil, err
		}
		reading["rain_value"] = v
	}
	if flags.Changed("status") {
		v, err := flags.GetString("status")
		if err != nil {
			return nil, err
		}
		reading["status"] = v
	}
	return json.Marshal(reading)
}
