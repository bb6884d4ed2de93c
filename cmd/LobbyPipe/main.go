package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	ossignal "os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/joho/godotenv"

	"github.com/openlobby/LobbyPipe/internal/api"
	"github.com/openlobby/LobbyPipe/internal/employee"
	"github.com/openlobby/LobbyPipe/internal/flow"
	"github.com/openlobby/LobbyPipe/internal/genai"
	"github.com/openlobby/LobbyPipe/internal/lockfile"
	"github.com/openlobby/LobbyPipe/internal/notify"
	"github.com/openlobby/LobbyPipe/internal/session"
	"github.com/openlobby/LobbyPipe/internal/signal"
	"github.com/openlobby/LobbyPipe/internal/store"
	"github.com/openlobby/LobbyPipe/internal/util"
	"github.com/openlobby/LobbyPipe/internal/verify"
	"github.com/openlobby/LobbyPipe/internal/wake"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for LobbyPipe state data
	DefaultStateDir = "/var/lib/lobbypipe"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "lobbypipe.db"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	cfg := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(cfg)

	// One LobbyPipe backend per state directory
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	ctx, stop := ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping LobbyPipe with configured modules")
	if err := run(ctx, cfg, flags); err != nil {
		slog.Error("LobbyPipe failed to run", "error", err)
		stop()
		lock.Release()
		os.Exit(1)
	}
	slog.Info("LobbyPipe exited successfully")
}

// run wires the coordination core and serves until ctx is cancelled.
func run(ctx context.Context, cfg Config, flags Flags) error {
	st, err := buildStore(flags)
	if err != nil {
		return err
	}
	defer st.Close()

	employees, err := buildEmployeeStore(ctx, flags)
	if err != nil {
		return err
	}

	notifier, sender := buildNotifier()
	otp := verify.NewOTPManager(sender, buildOTPOptions(cfg)...)

	mailbox := signal.NewMailbox()

	engineOpts := buildEngineOptions(flags)
	engine := flow.NewEngine(mailbox, employees, otp, notifier, st, engineOpts...)

	registry := session.NewRegistry(engine, st, session.WithIdleTimeout(cfg.IdleTimeout))
	if err := registry.Restore(ctx); err != nil {
		slog.Warn("Failed to restore persisted sessions", "error", err)
	}
	registry.StartSweeper(ctx, session.DefaultSweepInterval)

	apiOpts, err := buildAPIOptions(flags)
	if err != nil {
		return err
	}
	return api.NewServer(registry, engine, mailbox, st, apiOpts...).Run(ctx)
}

// Config holds environment configuration
type Config struct {
	StateDir       string
	DatabaseURL    string
	OpenAIKey      string
	APIAddr        string
	EmployeeTable  string
	EmployeeCSV    string
	FaceServiceURL string
	OTPTTL         time.Duration
	OTPMaxAttempts int
	OTPCodeLength  int
	IdleTimeout    time.Duration
}

// Flags holds command line flag values
type Flags struct {
	stateDir       *string
	dbDSN          *string
	openaiKey      *string
	apiAddr        *string
	employeeTable  *string
	employeeCSV    *string
	faceServiceURL *string
	maxFaceRetries *int
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	cfg := Config{
		StateDir:       os.Getenv("LOBBYPIPE_STATE_DIR"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		APIAddr:        os.Getenv("API_ADDR"),
		EmployeeTable:  os.Getenv("EMPLOYEE_TABLE"),
		EmployeeCSV:    os.Getenv("EMPLOYEE_CSV"),
		FaceServiceURL: os.Getenv("FACE_SERVICE_URL"),
		OTPTTL:         util.ParseDurationEnv("OTP_TTL", verify.DefaultCodeTTL),
		OTPMaxAttempts: util.ParseIntEnv("OTP_MAX_ATTEMPTS", verify.DefaultCodeMaxAttempts),
		OTPCodeLength:  util.ParseIntEnv("OTP_CODE_LENGTH", verify.DefaultCodeLength),
		IdleTimeout:    util.ParseDurationEnv("IDLE_TIMEOUT", wake.DefaultIdleTimeout),
	}

	if cfg.StateDir == "" {
		cfg.StateDir = DefaultStateDir
		slog.Debug("No LOBBYPIPE_STATE_DIR set, using default", "default_state_dir", cfg.StateDir)
	} else {
		slog.Debug("LOBBYPIPE_STATE_DIR found in environment", "state_dir", cfg.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = filepath.Join(cfg.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", cfg.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"LOBBYPIPE_STATE_DIR", cfg.StateDir,
		"DATABASE_URL_SET", cfg.DatabaseURL != "",
		"OPENAI_API_KEY_SET", cfg.OpenAIKey != "",
		"API_ADDR", cfg.APIAddr,
		"EMPLOYEE_TABLE", cfg.EmployeeTable,
		"EMPLOYEE_CSV", cfg.EmployeeCSV,
		"FACE_SERVICE_URL_SET", cfg.FaceServiceURL != "",
		"OTP_TTL", cfg.OTPTTL,
		"OTP_MAX_ATTEMPTS", cfg.OTPMaxAttempts,
		"IDLE_TIMEOUT", cfg.IdleTimeout)

	return cfg
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(cfg Config) Flags {
	flags := Flags{
		stateDir:       flag.String("state-dir", cfg.StateDir, "state directory for LobbyPipe data (overrides $LOBBYPIPE_STATE_DIR)"),
		dbDSN:          flag.String("db-dsn", cfg.DatabaseURL, "database DSN for the session store (overrides $DATABASE_URL)"),
		openaiKey:      flag.String("openai-api-key", cfg.OpenAIKey, "OpenAI API key for the utterance classifier (overrides $OPENAI_API_KEY)"),
		apiAddr:        flag.String("api-addr", cfg.APIAddr, "API server address (overrides $API_ADDR)"),
		employeeTable:  flag.String("employee-table", cfg.EmployeeTable, "DynamoDB employee table name (overrides $EMPLOYEE_TABLE)"),
		employeeCSV:    flag.String("employee-csv", cfg.EmployeeCSV, "CSV file to seed the in-memory employee store (overrides $EMPLOYEE_CSV)"),
		faceServiceURL: flag.String("face-service-url", cfg.FaceServiceURL, "base URL of the face matching service (overrides $FACE_SERVICE_URL)"),
		maxFaceRetries: flag.Int("max-face-attempts", flow.DefaultMaxFaceAttempts, "face capture attempts before manual verification"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"employeeTable", *flags.employeeTable,
		"employeeCSV", *flags.employeeCSV,
		"faceServiceURLSet", *flags.faceServiceURL != "",
		"maxFaceAttempts", *flags.maxFaceRetries)

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == cfg.DatabaseURL && cfg.DatabaseURL == filepath.Join(cfg.StateDir, DefaultDBFileName) && *flags.stateDir != cfg.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "dsn_updated", true, "old_state_dir", cfg.StateDir, "new_state_dir", *flags.stateDir)
	}

	return flags
}

// buildStore constructs the session store from the DSN
func buildStore(flags Flags) (store.Store, error) {
	if store.DetectDSNType(*flags.dbDSN) == store.DSNTypePostgres {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgres", "dsn_set", true)
		return store.NewPostgresStore(store.WithPostgresDSN(*flags.dbDSN))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", *flags.dbDSN)
	return store.NewSQLiteStore(store.WithSQLiteDSN(*flags.dbDSN))
}

// buildEmployeeStore constructs the employee record store. DynamoDB when a
// table is configured, otherwise in-memory, optionally seeded from CSV.
func buildEmployeeStore(ctx context.Context, flags Flags) (employee.Store, error) {
	if *flags.employeeTable != "" {
		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
		}
		slog.Info("Using DynamoDB employee store", "table", *flags.employeeTable)
		return employee.NewDynamoDBStore(dynamodb.NewFromConfig(awsCfg), *flags.employeeTable)
	}

	inMem := employee.NewInMemoryStore()
	if *flags.employeeCSV != "" {
		if err := inMem.LoadCSV(*flags.employeeCSV); err != nil {
			return nil, fmt.Errorf("failed to load employee CSV %s: %w", *flags.employeeCSV, err)
		}
		slog.Info("Using in-memory employee store seeded from CSV", "path", *flags.employeeCSV)
	} else {
		slog.Warn("No employee table or CSV configured; employee store is empty")
	}
	return inMem, nil
}

// buildNotifier selects the host notification and code delivery channel.
// Twilio when credentials are present, log-only otherwise.
func buildNotifier() (notify.Notifier, verify.CodeSender) {
	client, err := notify.NewClient()
	if err != nil {
		slog.Warn("Twilio not configured, using log-only notifier", "reason", err)
		logOnly := notify.LogNotifier{}
		return logOnly, logOnly
	}
	slog.Info("Using Twilio SMS for host notification and code delivery")
	return client, client
}

// buildOTPOptions constructs one-time-code policy options
func buildOTPOptions(cfg Config) []verify.OTPOption {
	return []verify.OTPOption{
		verify.WithCodeTTL(cfg.OTPTTL),
		verify.WithCodeMaxAttempts(cfg.OTPMaxAttempts),
		verify.WithCodeLength(cfg.OTPCodeLength),
	}
}

// buildEngineOptions constructs flow engine options
func buildEngineOptions(flags Flags) []flow.Option {
	var opts []flow.Option
	if *flags.maxFaceRetries > 0 {
		opts = append(opts, flow.WithMaxFaceAttempts(*flags.maxFaceRetries))
	}
	if *flags.openaiKey != "" {
		client, err := genai.NewClient(genai.WithAPIKey(*flags.openaiKey))
		if err != nil {
			slog.Warn("Failed to initialize OpenAI classifier, keyword classification only", "error", err)
		} else {
			slog.Info("OpenAI classifier enabled for inconclusive utterances")
			opts = append(opts, flow.WithClassifier(genai.NewUserTypeClassifier(client)))
		}
	}
	return opts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) ([]api.Option, error) {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.faceServiceURL != "" {
		matcher, err := verify.NewHTTPMatcher(verify.WithMatcherURL(*flags.faceServiceURL))
		if err != nil {
			return nil, fmt.Errorf("failed to configure face matcher: %w", err)
		}
		apiOpts = append(apiOpts, api.WithMatcher(matcher))
	} else {
		slog.Warn("No face service configured; capture results must carry a pre-matched identity")
	}
	return apiOpts, nil
}
