package guardian

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BYEONGJUJO/CCTV-Guardian/pkg/models"
	"github.com/BYEONGJUJO/CCTV-Guardian/pkg/sink"
	"github.com/BYEONGJUJO/CCTV-Guardian/pkg/tail"
)

func newTestLogger(t *testing.T) (*Logger, string) {
	t.Helper()
	dir := t.TempDir()
	logger, err := New(Config{LogDir: dir})
	require.NoError(t, err)
	t.Cleanup(func() { logger.Close() })
	return logger, dir
}

func readRecords(t *testing.T, dir, channel string) []map[string]interface{} {
	t.Helper()
	records, err := tail.ReadFile(filepath.Join(dir, channel+".jsonl"))
	require.NoError(t, err)
	return records
}

func Test_LogNetworkEvent_WritesMaskedRecord(t *testing.T) {
	logger, dir := newTestLogger(t)

	err := logger.LogNetworkEvent("connection", "192.168.1.100", "192.168.1.10", 554, "TCP", nil)
	require.NoError(t, err)

	records := readRecords(t, dir, "events")
	require.Len(t, records, 1)
	rec := records[0]

	assert.Equal(t, "network", rec["category"])
	assert.Equal(t, "connection", rec["event_type"])
	assert.Equal(t, "192.168.1.xxx", rec["src_ip"])
	assert.Equal(t, "192.168.1.xxx", rec["dst_ip"])
	assert.Equal(t, float64(554), rec["port"])
	assert.Equal(t, "TCP", rec["protocol"])
	assert.Equal(t, "NETWORK: connection", rec["message"])
	assert.Equal(t, "INFO", rec["level"])
	assert.NotEmpty(t, rec["timestamp"])
}

func Test_LogApiRequest_RoundsResponseTime(t *testing.T) {
	logger, dir := newTestLogger(t)

	err := logger.LogAPIRequest("POST", "/api/login", "192.168.1.50", 200, 45.333, map[string]interface{}{
		"username": "admin",
	})
	require.NoError(t, err)

	records := readRecords(t, dir, "events")
	require.Len(t, records, 1)
	rec := records[0]

	assert.Equal(t, "api", rec["category"])
	assert.Equal(t, "POST", rec["method"])
	assert.Equal(t, "/api/login", rec["endpoint"])
	assert.Equal(t, "192.168.1.xxx", rec["src_ip"])
	assert.Equal(t, float64(200), rec["status_code"])
	assert.Equal(t, 45.33, rec["response_time_ms"])
	assert.Equal(t, "admin", rec["username"])
	assert.Equal(t, "API: POST /api/login", rec["message"])
}

func Test_LogThreat_MasksAndRemovesSourceIP(t *testing.T) {
	logger, dir := newTestLogger(t)

	err := logger.LogThreat("network", map[string]interface{}{
		"threat_type":   "PORT_SCAN",
		"severity":      "HIGH",
		"src_ip":        "10.0.0.5",
		"ports_scanned": 15,
	})
	require.NoError(t, err)

	records := readRecords(t, dir, "threats")
	require.Len(t, records, 1)
	rec := records[0]

	assert.Equal(t, "WARNING", rec["level"])
	assert.Equal(t, "THREAT: PORT_SCAN", rec["message"])
	assert.Equal(t, "network", rec["category"])
	assert.Equal(t, "HIGH", rec["severity"])
	assert.Equal(t, float64(15), rec["ports_scanned"])
	assert.Equal(t, "10.0.0.xxx", rec["src_ip_masked"])

	_, hasRaw := rec["src_ip"]
	assert.False(t, hasRaw, "the raw src_ip must never be persisted")

	// The raw file must not contain the unmasked address at all.
	data, err := os.ReadFile(filepath.Join(dir, "threats.jsonl"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"10.0.0.5"`)
}

func Test_LogThreat_MissingThreatType_FallsBackToUnknown(t *testing.T) {
	logger, dir := newTestLogger(t)

	require.NoError(t, logger.LogThreat("tampering", map[string]interface{}{
		"severity": "LOW",
	}))

	records := readRecords(t, dir, "threats")
	require.Len(t, records, 1)
	assert.Equal(t, "THREAT: UNKNOWN", records[0]["message"])
}

func Test_LogThreat_DoesNotMutateCallerMap(t *testing.T) {
	logger, _ := newTestLogger(t)

	threat := map[string]interface{}{
		"threat_type": "BRUTE_FORCE",
		"src_ip":      "10.0.0.7",
	}
	require.NoError(t, logger.LogThreat("auth", threat))

	assert.Equal(t, "10.0.0.7", threat["src_ip"])
	_, leaked := threat["src_ip_masked"]
	assert.False(t, leaked)
}

func Test_ExtraFields_OverrideFixedKeys(t *testing.T) {
	logger, dir := newTestLogger(t)

	err := logger.LogNetworkEvent("connection", "1.2.3.4", "5.6.7.8", 80, "TCP", map[string]interface{}{
		"protocol": "UDP",
		"message":  "clobbered",
	})
	require.NoError(t, err)

	rec := readRecords(t, dir, "events")[0]
	assert.Equal(t, "UDP", rec["protocol"])
	assert.Equal(t, "clobbered", rec["message"])
}

func Test_MinLevel_FiltersInfoRecords(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(Config{LogDir: dir, MinLevel: models.LevelError})
	require.NoError(t, err)
	defer logger.Close()

	require.NoError(t, logger.LogNetworkEvent("connection", "1.2.3.4", "5.6.7.8", 80, "TCP", nil))
	require.NoError(t, logger.LogThreat("network", map[string]interface{}{"threat_type": "SCAN"}))

	assert.NoFileExists(t, filepath.Join(dir, "events.jsonl"))
	assert.NoFileExists(t, filepath.Join(dir, "threats.jsonl"))
}

func Test_MinLevel_LowercaseValue_IsNormalized(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(Config{LogDir: dir, MinLevel: "warning"})
	require.NoError(t, err)
	defer logger.Close()

	require.NoError(t, logger.LogNetworkEvent("connection", "1.2.3.4", "5.6.7.8", 80, "TCP", nil))
	require.NoError(t, logger.LogThreat("network", map[string]interface{}{"threat_type": "SCAN"}))

	assert.NoFileExists(t, filepath.Join(dir, "events.jsonl"))
	assert.Len(t, readRecords(t, dir, "threats"), 1)
}

func Test_MinLevel_UnknownValue_FallsBackToDefault(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(Config{LogDir: dir, MinLevel: "VREBOSE"})
	require.NoError(t, err)
	defer logger.Close()

	// A typo must not silently disable all logging.
	require.NoError(t, logger.LogNetworkEvent("connection", "1.2.3.4", "5.6.7.8", 80, "TCP", nil))
	assert.Len(t, readRecords(t, dir, "events"), 1)
}

func Test_UnencodableExtra_DegradesToFallbackRecord(t *testing.T) {
	logger, dir := newTestLogger(t)

	err := logger.LogNetworkEvent("connection", "1.2.3.4", "5.6.7.8", 80, "TCP", map[string]interface{}{
		"handle": make(chan int),
	})
	require.NoError(t, err, "serialization failures must not surface to callers")

	records := readRecords(t, dir, "events")
	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, "serialization_failed", rec["error"])
	assert.Equal(t, "NETWORK: connection", rec["message"])
	assert.Equal(t, "INFO", rec["level"])
}

func Test_New_UncreatableDir_ReturnsConfigError(t *testing.T) {
	parent := filepath.Join(t.TempDir(), "occupied")
	require.NoError(t, os.WriteFile(parent, []byte("file"), 0o644))

	_, err := New(Config{LogDir: filepath.Join(parent, "logs")})
	require.Error(t, err)
	var cerr *sink.ConfigError
	assert.ErrorAs(t, err, &cerr)
}

func Test_EventsAndThreats_LandOnSeparateChannels(t *testing.T) {
	logger, dir := newTestLogger(t)

	require.NoError(t, logger.LogNetworkEvent("connection", "1.2.3.4", "5.6.7.8", 80, "TCP", nil))
	require.NoError(t, logger.LogAPIRequest("GET", "/api/status", "1.2.3.4", 200, 1.0, nil))
	require.NoError(t, logger.LogThreat("network", map[string]interface{}{"threat_type": "SCAN"}))

	assert.Len(t, readRecords(t, dir, "events"), 2)
	assert.Len(t, readRecords(t, dir, "threats"), 1)
}

func Test_ConcurrentLogging_AllRecordsLand(t *testing.T) {
	logger, dir := newTestLogger(t)

	const workers, perWorker = 8, 25
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				assert.NoError(t, logger.LogAPIRequest("GET", fmt.Sprintf("/api/cameras/%d", i), "10.0.0.1", 200, 5.0, map[string]interface{}{
					"worker": w,
				}))
			}
		}(w)
	}
	wg.Wait()

	assert.Len(t, readRecords(t, dir, "events"), workers*perWorker)
}

func Test_Timestamps_NonDecreasingInCallOrder(t *testing.T) {
	logger, dir := newTestLogger(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, logger.LogNetworkEvent("connection", "1.2.3.4", "5.6.7.8", 80, "TCP", nil))
	}

	records := readRecords(t, dir, "events")
	require.Len(t, records, 5)

	var prev time.Time
	for _, rec := range records {
		ts, err := time.Parse("2006-01-02T15:04:05.000000Z", rec["timestamp"].(string))
		require.NoError(t, err)
		assert.False(t, ts.Before(prev), "timestamps must be non-decreasing")
		prev = ts
	}
}
