// Package forward mirrors threat records to Splunk HEC so a SIEM sees
// detections without tailing the local files. Delivery is best-effort and
// never blocks or fails the local write path.
package forward

import (
	"crypto/tls"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mosajjal/Go-Splunk-HTTP/splunk/v2"

	"github.com/BYEONGJUJO/CCTV-Guardian/pkg/models"
)

// Config holds HEC forwarding configuration
type Config struct {
	Endpoints       []string
	TLSSkipVerify   bool
	Proxy           string
	Token           string
	ChannelID       string
	Index           string
	Source          string
	SourceType      string
	Host            string
	SendTimeout     time.Duration
	BalanceStrategy string // first_available, sticky, random, roundrobin
}

const (
	FirstAvailable = 1
	Sticky         = 2
	Random         = 3
	RoundRobin     = 4
)

// Forwarder manages HEC connections and threat delivery
type Forwarder struct {
	config          Config
	connections     []*connection
	balanceStrategy uint8
	done            chan struct{}
	closeOnce       sync.Once

	mu    sync.Mutex
	count int
}

type connection struct {
	endpoint string
	client   *splunk.Client

	// mu guards isHealthy, which the health-check goroutine writes while
	// Forward reads it.
	mu        sync.Mutex
	isHealthy bool
}

// New creates a forwarder with one connection per endpoint and starts a
// health-check goroutine for each.
func New(cfg Config) (*Forwarder, error) {
	f := &Forwarder{
		config:      cfg,
		connections: make([]*connection, 0),
		done:        make(chan struct{}),
	}

	switch cfg.BalanceStrategy {
	case "first_available":
		f.balanceStrategy = FirstAvailable
	case "sticky":
		f.balanceStrategy = Sticky
	case "random":
		f.balanceStrategy = Random
	case "roundrobin":
		f.balanceStrategy = RoundRobin
	default:
		log.Printf("Unknown load balance strategy: %v. Using first_available", cfg.BalanceStrategy)
		f.balanceStrategy = FirstAvailable
	}

	for _, endpoint := range cfg.Endpoints {
		conn, err := newConnection(endpoint, cfg)
		if err != nil {
			log.Printf("Failed to create connection to %s: %v", endpoint, err)
			continue
		}
		f.connections = append(f.connections, conn)
		go conn.healthCheck(f.done)
	}

	if len(f.connections) == 0 {
		return nil, fmt.Errorf("no valid HEC endpoints configured")
	}

	return f, nil
}

func newConnection(endpoint string, cfg Config) (*connection, error) {
	rt := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.TLSSkipVerify},
	}
	timeout := cfg.SendTimeout
	if timeout == 0 {
		timeout = 2 * time.Second
	}
	httpClient := &http.Client{
		Timeout:   timeout,
		Transport: rt,
	}

	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		httpClient.Transport = &http.Transport{
			Proxy:           http.ProxyURL(proxyURL),
			TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.TLSSkipVerify},
		}
	}

	if !strings.HasSuffix(endpoint, "/services/collector") {
		endpoint = fmt.Sprintf("%s/services/collector", endpoint)
	}

	channelID := cfg.ChannelID
	if channelID == "" {
		channelID = uuid.New().String()
	} else {
		if _, err := uuid.Parse(channelID); err != nil {
			channelID = uuid.New().String()
		}
	}

	splunkClient := splunk.NewClient(
		httpClient,
		endpoint,
		cfg.Token,
		channelID,
		cfg.Source,
		cfg.SourceType,
		cfg.Index,
	)

	conn := &connection{
		endpoint: endpoint,
		client:   splunkClient,
	}
	conn.updateHealth()

	return conn, nil
}

func (c *connection) updateHealth() {
	healthy := c.client.CheckHealth() == nil
	c.mu.Lock()
	c.isHealthy = healthy
	c.mu.Unlock()
}

func (c *connection) healthy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isHealthy
}

func (c *connection) healthCheck(done <-chan struct{}) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.updateHealth()
		}
	}
}

// Forward sends one record to a healthy HEC connection. The record's fields
// travel as the event body alongside message and level.
func (f *Forwarder) Forward(rec models.Record) error {
	body := make(map[string]interface{}, len(rec.Fields)+2)
	for k, v := range rec.Fields {
		body[k] = v
	}
	body["message"] = rec.Message
	body["level"] = string(rec.Level)

	event := &splunk.Event{
		Time:       splunk.EventTime{Time: time.Now()},
		Host:       f.config.Host,
		Source:     f.config.Source,
		SourceType: f.config.SourceType,
		Index:      f.config.Index,
		Event:      body,
	}

	conn := f.getConnection()
	if conn == nil {
		return fmt.Errorf("no healthy HEC connection available")
	}
	return conn.client.LogEvents([]*splunk.Event{event})
}

func (f *Forwarder) getConnection() *connection {
	switch f.balanceStrategy {
	case FirstAvailable:
		return f.getFirstAvailable()
	case Sticky:
		return f.getSticky()
	case Random:
		return f.getRandom()
	case RoundRobin:
		return f.getRoundRobin()
	default:
		return f.getFirstAvailable()
	}
}

func (f *Forwarder) getFirstAvailable() *connection {
	for _, conn := range f.connections {
		if conn.healthy() {
			return conn
		}
	}
	return nil
}

func (f *Forwarder) getSticky() *connection {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.count >= len(f.connections) {
		f.count = 0
	}
	conn := f.connections[f.count]
	if conn.healthy() {
		return conn
	}
	return f.getFirstAvailableLocked()
}

func (f *Forwarder) getRandom() *connection {
	start := rand.Intn(len(f.connections))
	for i := 0; i < len(f.connections); i++ {
		conn := f.connections[(start+i)%len(f.connections)]
		if conn.healthy() {
			return conn
		}
	}
	return nil
}

func (f *Forwarder) getRoundRobin() *connection {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := 0; i < len(f.connections); i++ {
		f.count = (f.count + 1) % len(f.connections)
		conn := f.connections[f.count]
		if conn.healthy() {
			return conn
		}
	}
	return nil
}

func (f *Forwarder) getFirstAvailableLocked() *connection {
	for _, conn := range f.connections {
		if conn.healthy() {
			return conn
		}
	}
	return nil
}

// Close stops the health-check goroutines. Safe to call more than once.
func (f *Forwarder) Close() error {
	f.closeOnce.Do(func() { close(f.done) })
	return nil
}
