package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Reading mirrors the payload sensor-monitor decodes
type Reading struct {
	SensorID     string   `json:"sensorId"`
	SensorType   string   `json:"sensorType"`
	Value        float64  `json:"value"`
	Unit         string   `json:"unit"`
	BatteryLevel *int     `json:"batteryLevel,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	Timestamp    string   `json:"timestamp,omitempty"`
}

// SensorConfig describes one simulated sensor
type SensorConfig struct {
	ID        string
	Type      string
	Unit      string
	Base      float64
	Spread    float64
	Latitude  float64
	Longitude float64
	Interval  time.Duration
}

var sensors = []SensorConfig{
	{ID: "temp-001", Type: "temperature", Unit: "C", Base: 24, Spread: 16, Latitude: -23.55, Longitude: -46.63, Interval: 5 * time.Second},
	{ID: "temp-002", Type: "temperature", Unit: "C", Base: 18, Spread: 12, Latitude: 40.71, Longitude: -74.0, Interval: 8 * time.Second},
	{ID: "hum-001", Type: "humidity", Unit: "%", Base: 55, Spread: 40, Latitude: 35.68, Longitude: 139.69, Interval: 6 * time.Second},
	{ID: "pres-001", Type: "pressure", Unit: "hPa", Base: 1000, Spread: 80, Latitude: -33.87, Longitude: 151.21, Interval: 10 * time.Second},
}

func main() {
	broker := flag.String("broker", "tcp://localhost:1883", "MQTT broker address")
	username := flag.String("username", "", "MQTT username")
	password := flag.String("password", "", "MQTT password")
	prefix := flag.String("prefix", "sensors", "topic prefix")
	mode := flag.String("mode", "continuous", "run mode: single, batch, continuous")
	flag.Parse()

	opts := paho.NewClientOptions()
	opts.AddBroker(*broker)
	opts.SetClientID(fmt.Sprintf("sensor-publisher-%d", time.Now().Unix()))
	if *username != "" {
		opts.SetUsername(*username)
		opts.SetPassword(*password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		fmt.Printf("connection lost: %v\n", err)
	})

	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		fmt.Printf("failed to connect to MQTT broker: %v\n", token.Error())
		os.Exit(1)
	}
	defer client.Disconnect(250)

	fmt.Printf("connected to MQTT broker: %s\n", *broker)

	switch *mode {
	case "single":
		publish(client, *prefix, sensors[0])
	case "batch":
		publishBatch(client, *prefix)
	case "continuous":
		publishContinuous(client, *prefix)
	default:
		fmt.Println("unknown mode, use single, batch or continuous")
		os.Exit(1)
	}
}

// publishBatch sends one reading per sensor, plus one with a critical battery
func publishBatch(client paho.Client, prefix string) {
	for _, s := range sensors {
		publish(client, prefix, s)
		time.Sleep(100 * time.Millisecond)
	}

	low := 5
	r := newReading(sensors[0])
	r.BatteryLevel = &low
	send(client, fmt.Sprintf("%s/%s/%s", prefix, r.SensorType, r.SensorID), r)

	fmt.Println("batch published")
}

func publishContinuous(client paho.Client, prefix string) {
	for _, s := range sensors {
		go func(s SensorConfig) {
			for {
				publish(client, prefix, s)
				time.Sleep(s.Interval)
			}
		}(s)
		fmt.Printf("sensor %s reports every %v\n", s.ID, s.Interval)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Println("disconnecting...")
}

func publish(client paho.Client, prefix string, s SensorConfig) {
	send(client, fmt.Sprintf("%s/%s/%s", prefix, s.Type, s.ID), newReading(s))
}

// newReading draws a value around Base; the spread is wide enough that some
// readings leave the default alert bounds.
func newReading(s SensorConfig) Reading {
	value := s.Base + (rand.Float64()*2-1)*s.Spread
	battery := 5 + rand.Intn(96)
	lat, lon := s.Latitude, s.Longitude

	r := Reading{
		SensorID:     s.ID,
		SensorType:   s.Type,
		Value:        float64(int(value*10)) / 10,
		Unit:         s.Unit,
		BatteryLevel: &battery,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	}
	// some sensors have no GPS fix
	if rand.Intn(4) > 0 {
		r.Latitude, r.Longitude = &lat, &lon
	}
	return r
}

func send(client paho.Client, topic string, r Reading) {
	payload, err := json.Marshal(r)
	if err != nil {
		fmt.Printf("failed to encode reading: %v\n", err)
		return
	}

	token := client.Publish(topic, 1, false, payload)
	token.Wait()
	if token.Error() != nil {
		fmt.Printf("failed to publish: %v\n", token.Error())
		return
	}
	fmt.Printf("[%s] %s %s\n", time.Now().Format("15:04:05"), topic, payload)
}
