package common

// Dashboard profiles
const (
	ProfileSentiment = "sentiment"
	ProfileSpam      = "spam"
)

// Environment variable keys
const (
	EnvConfigFile     = "CONFIG_FILE"
	EnvProfile        = "PROFILE"
	EnvModelPath      = "MODEL_PATH"
	EnvArtifactURL    = "ARTIFACT_URL"
	EnvDataPath       = "DATA_PATH"
	EnvHTTPPort       = "HTTP_PORT"
	EnvBatchWorkers   = "BATCH_WORKERS"
	EnvCacheSize      = "CACHE_SIZE"
	EnvMaxUploadBytes = "MAX_UPLOAD_BYTES"
	EnvFetchTimeout   = "FETCH_TIMEOUT"
	EnvResultTTL      = "RESULT_TTL"
	EnvFlaggedValues  = "FLAGGED_VALUES"
	EnvLogLevel       = "LOG_LEVEL"
	EnvLogPretty      = "LOG_PRETTY"
)

// Configuration defaults
const (
	DefaultProfile          = ProfileSentiment
	DefaultSentimentModel   = "food_sentiment_reg.pkl"
	DefaultSpamModel        = "spam_clf.pkl"
	DefaultHTTPPort         = 8501
	DefaultBatchWorkers     = 1
	DefaultCacheSize        = 0
	DefaultMaxUploadBytes   = 32 << 20 // 32 MiB
	DefaultLogLevel         = "info"
	DefaultResultsFileName  = "msgclf-results.db"
	DefaultSentimentExport  = "sentiment_analysis_results.csv"
	DefaultSpamExport       = "predicted_results.csv"
	DefaultHeaderlessColumn = "Msg"
)

// Label vocabularies per profile
const (
	LabelPositive = "Positive"
	LabelNegative = "Negative"
	LabelSpam     = "Spam"
	LabelHam      = "Ham"
)

// Result table columns appended to bulk input
const (
	ColumnLabel      = "Label"
	ColumnPrediction = "Prediction_Value"
)

// Validation constants
const (
	MinHTTPPort       = 1024
	MaxHTTPPort       = 65535
	MaxBatchWorkers   = 64
	MaxCacheSize      = 1_000_000
	MinMaxUploadBytes = 1 << 10
	MaxMaxUploadBytes = 1 << 30
	MaxMessageLength  = 10_000
	MaxBatchMessages  = 100_000
)

// ArtifactExtensions lists upload file extensions accepted as model artifacts.
var ArtifactExtensions = []string{".pkl", ".pickle", ".joblib", ".gob", ".msgc", ".yaml", ".yml"}
