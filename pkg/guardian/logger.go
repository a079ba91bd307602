// Package guardian is the event-logging facade for the CCTV Guardian
// security monitor: typed methods turn detections into masked, structured
// JSON Lines records on per-category rotating files.
package guardian

import (
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/BYEONGJUJO/CCTV-Guardian/pkg/archive"
	"github.com/BYEONGJUJO/CCTV-Guardian/pkg/format"
	"github.com/BYEONGJUJO/CCTV-Guardian/pkg/forward"
	"github.com/BYEONGJUJO/CCTV-Guardian/pkg/models"
	"github.com/BYEONGJUJO/CCTV-Guardian/pkg/privacy"
	"github.com/BYEONGJUJO/CCTV-Guardian/pkg/sink"
)

// Config holds logger construction settings. The zero value uses
// ./data/logs, INFO and 14 retained rotations per channel.
type Config struct {
	LogDir      string
	MinLevel    models.Level
	BackupCount int

	// Forwarder, when set, mirrors threat records to Splunk HEC.
	Forwarder *forward.Forwarder

	// Archive, when set, receives every rotated file.
	Archive archive.Backend

	// Now overrides the clock for both timestamps and rotation. Tests only.
	Now func() time.Time
}

// Logger is the public logging surface. All methods are safe for concurrent
// use. Logging failures are returned for callers that monitor logging
// health, but they never panic and a failed channel keeps accepting calls.
type Logger struct {
	registry  *sink.Registry
	formatter *format.Formatter
	minLevel  models.Level
	forwarder *forward.Forwarder
}

// New builds the channel registry and facade. The only fatal failure is a
// log directory that cannot be created, reported as a *sink.ConfigError.
func New(cfg Config) (*Logger, error) {
	if cfg.LogDir == "" {
		cfg.LogDir = models.DefaultLogDir
	}

	// A misspelled or lowercase minimum level must not silently disable
	// logging; anything unrecognized falls back to the default.
	cfg.MinLevel = models.Level(strings.ToUpper(strings.TrimSpace(string(cfg.MinLevel))))
	if !cfg.MinLevel.Valid() {
		cfg.MinLevel = models.DefaultLevel
	}

	sinkCfg := sink.Config{
		Dir:         cfg.LogDir,
		BackupCount: cfg.BackupCount,
		Now:         cfg.Now,
	}
	if cfg.Archive != nil {
		sinkCfg.OnRotate = archive.Hook(cfg.Archive)
	}

	registry, err := sink.NewRegistry(sinkCfg)
	if err != nil {
		return nil, err
	}

	return &Logger{
		registry:  registry,
		formatter: &format.Formatter{Now: cfg.Now},
		minLevel:  cfg.MinLevel,
		forwarder: cfg.Forwarder,
	}, nil
}

// LogNetworkEvent records one network occurrence on the "events" channel.
// Both addresses are masked before the record is built; extra fields are
// merged last and may override the fixed ones.
func (l *Logger) LogNetworkEvent(eventType, srcIP, dstIP string, port int, protocol string, extra map[string]interface{}) error {
	fields := map[string]interface{}{
		"category":   models.CategoryNetwork,
		"event_type": eventType,
		"src_ip":     privacy.MaskIP(srcIP),
		"dst_ip":     privacy.MaskIP(dstIP),
		"port":       port,
		"protocol":   protocol,
	}
	mergeExtra(fields, extra)

	return l.emit(models.ChannelEvents, models.Record{
		Level:   models.LevelInfo,
		Message: fmt.Sprintf("NETWORK: %s", eventType),
		Fields:  fields,
	})
}

// LogAPIRequest records one API call on the "events" channel. The response
// time is rounded to two decimal places.
func (l *Logger) LogAPIRequest(method, endpoint, srcIP string, statusCode int, responseTimeMs float64, extra map[string]interface{}) error {
	fields := map[string]interface{}{
		"category":         models.CategoryAPI,
		"method":           method,
		"endpoint":         endpoint,
		"src_ip":           privacy.MaskIP(srcIP),
		"status_code":      statusCode,
		"response_time_ms": math.Round(responseTimeMs*100) / 100,
	}
	mergeExtra(fields, extra)

	return l.emit(models.ChannelEvents, models.Record{
		Level:   models.LevelInfo,
		Message: fmt.Sprintf("API: %s %s", method, endpoint),
		Fields:  fields,
	})
}

// LogThreat records one detection on the "threats" channel at WARNING. A
// src_ip key in the threat map is replaced by src_ip_masked; the raw address
// never reaches the persisted record. The caller's map is not mutated.
func (l *Logger) LogThreat(category string, threat map[string]interface{}) error {
	threatType := "UNKNOWN"
	if v, ok := threat["threat_type"].(string); ok && v != "" {
		threatType = v
	}

	fields := make(map[string]interface{}, len(threat)+2)
	fields["category"] = category
	for k, v := range threat {
		fields[k] = v
	}
	if v, ok := fields["src_ip"]; ok {
		delete(fields, "src_ip")
		fields["src_ip_masked"] = privacy.MaskIP(fmt.Sprint(v))
	}

	rec := models.Record{
		Level:   models.LevelWarning,
		Message: fmt.Sprintf("THREAT: %s", threatType),
		Fields:  fields,
	}

	err := l.emit(models.ChannelThreats, rec)

	if l.forwarder != nil && rec.Level.Meets(l.minLevel) {
		go func() {
			if ferr := l.forwarder.Forward(rec); ferr != nil {
				log.Printf("Failed to forward threat to HEC: %v", ferr)
			}
		}()
	}

	return err
}

// emit formats and appends one record. A record that cannot be serialized
// degrades to a fallback line and reports success; only write failures
// surface to the caller.
func (l *Logger) emit(channel string, rec models.Record) error {
	if !rec.Level.Meets(l.minLevel) {
		return nil
	}

	line, err := l.formatter.Format(rec.Level, rec.Message, rec.Fields)
	if err != nil {
		log.Printf("Failed to serialize record on %s: %v", channel, err)
		line = l.formatter.Fallback(rec.Level, rec.Message)
	}

	return l.registry.GetOrCreate(channel).Append(line)
}

// Close flushes and closes every channel. Safe to call more than once;
// logging after Close reopens the files.
func (l *Logger) Close() error {
	return l.registry.Close()
}

// mergeExtra copies caller-supplied fields over the category-fixed ones.
// Later keys win, including collisions with timestamp/level/message; that
// override is documented behavior.
func mergeExtra(fields, extra map[string]interface{}) {
	for k, v := range extra {
		fields[k] = v
	}
}
