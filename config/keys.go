package config

import "time"

// EnvPrefix is prepended to every key when read from the environment,
// e.g. PEAK_ANALYZER_STORE_REDIS_ADDR for store.redis_addr.
const EnvPrefix = "PEAK_ANALYZER"

const (
	KeyAnalyzer     = "analyzer"
	KeyBackendKind  = "backend.kind"
	KeyBackendInput = "backend.input"

	KeyThreshold = "threshold"
	KeyStartDate = "start_date"
	KeyEndDate   = "end_date"
	KeyDelta     = "delta"
	KeyDelay     = "delay"

	KeyPeakLocalMinCount     = "peak.local_min_count"
	KeyPeakGlobalCountWeight = "peak.global_count_weight"
	KeyPeakMinSampSubRatio   = "peak.min_samp_sub_ratio"
	KeyPeakStdWeight         = "peak.std_weight"

	KeyStoreKind      = "store.kind"
	KeyStorePath      = "store.path"
	KeyStorePeaksPath = "store.peaks_path"
	KeyStoreRedisAddr = "store.redis_addr"
	KeyStoreRedisPass = "store.redis_password"
	KeyStoreRedisDB   = "store.redis_db"
	KeyStoreRedisKey  = "store.redis_key"
	KeyStorePeaksTTL  = "store.peaks_ttl"

	KeyOutput      = "output"
	KeyMetricsFile = "metrics_file"
	KeyServeAddr   = "serve.addr"

	KeyLogLevel      = "log.level"
	KeyLogFile       = "log.file"
	KeyLogMaxSizeMB  = "log.max_size_mb"
	KeyLogMaxBackups = "log.max_backups"
	KeyLogMaxAgeDays = "log.max_age_days"
)

const (
	DefaultAnalyzer       = "file_type"
	DefaultBackendKind    = "json"
	DefaultDelta          = 1
	DefaultStoreKind      = "file"
	DefaultStorePath      = "global_table.json"
	DefaultStorePeaksPath = "peaks.json"
	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisKey       = "peak_analyzer"
	DefaultPeaksTTL       = 7 * 24 * time.Hour
	DefaultServeAddr      = ":8080"
	DefaultLogLevel       = "info"
	DefaultLogMaxSizeMB   = 100
	DefaultLogMaxBackups  = 10
	DefaultLogMaxAgeDays  = 30
)

var defaults = map[string]any{
	KeyAnalyzer:              DefaultAnalyzer,
	KeyBackendKind:           DefaultBackendKind,
	KeyBackendInput:          "",
	KeyThreshold:             0,
	KeyStartDate:             "",
	KeyEndDate:               "",
	KeyDelta:                 DefaultDelta,
	KeyDelay:                 0,
	KeyPeakLocalMinCount:     50,
	KeyPeakGlobalCountWeight: 0.8,
	KeyPeakMinSampSubRatio:   0.5,
	KeyPeakStdWeight:         1.0,
	KeyStoreKind:             DefaultStoreKind,
	KeyStorePath:             DefaultStorePath,
	KeyStorePeaksPath:        DefaultStorePeaksPath,
	KeyStoreRedisAddr:        DefaultRedisAddr,
	KeyStoreRedisPass:        "",
	KeyStoreRedisDB:          0,
	KeyStoreRedisKey:         DefaultRedisKey,
	KeyStorePeaksTTL:         DefaultPeaksTTL,
	KeyOutput:                "",
	KeyMetricsFile:           "",
	KeyServeAddr:             DefaultServeAddr,
	KeyLogLevel:              DefaultLogLevel,
	KeyLogFile:               "",
	KeyLogMaxSizeMB:          DefaultLogMaxSizeMB,
	KeyLogMaxBackups:         DefaultLogMaxBackups,
	KeyLogMaxAgeDays:         DefaultLogMaxAgeDays,
}
