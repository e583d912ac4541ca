package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/buildx-events/registration/api"
	"github.com/buildx-events/registration/dynamo"
	"github.com/buildx-events/registration/notify"
	"github.com/buildx-events/registration/registration"
	"github.com/buildx-events/registration/wizard"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	settings := getServerSettingsFromEnv()

	dynamoClient, err := newDynamoClient(ctx, settings)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating dynamo client\n: %s", err)
		os.Exit(1)
	}
	db := dynamo.NewDB(dynamoClient, settings.TableName, settings.MaxRegistrations)

	var notifier notify.Notifier = notify.NopNotifier{}
	if settings.WebhookURL != "" {
		webhook := notify.NewWebhook(settings.WebhookURL, 5*time.Second)
		defer webhook.Close()
		notifier = webhook
	}

	pipeline := registration.NewPipeline(db, notifier, settings.LedgerID, logger, registration.PipelineOptions{})

	drafts := func(sessionId string) wizard.DraftStore {
		return db.DraftSlot(sessionId)
	}

	eventAPI := api.NewAPI(db, db, pipeline, drafts, settings.LedgerID, logger, settings.Env)

	swagger, err := api.GetSwagger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading swagger spec\n: %s", err)
		os.Exit(1)
	}

	swagger.Servers = nil

	s := &http.Server{
		Handler: eventAPI.Handler(swagger),
		Addr:    net.JoinHostPort(settings.Host, settings.Port),
	}

	logger.Info("Starting server", "addr", s.Addr)
	if err := s.ListenAndServe(); err != nil {
		logger.Error("Server exited", "error", err)
		os.Exit(1)
	}
}

type ServerSettings struct {
	Host             string
	Port             string
	Env              api.Environment
	TableName        string
	LedgerID         string
	WebhookURL       string
	MaxRegistrations int
	DynamoEndpoint   string
}

func getServerSettingsFromEnv() ServerSettings {
	env := api.LOCAL
	if getEnvOrDefault("ENV", "LOCAL") == "PROD" {
		env = api.PROD
	}

	maxRegistrations, err := strconv.Atoi(getEnvOrDefault("MAX_REGISTRATIONS", "100"))
	if err != nil {
		maxRegistrations = 0
	}

	return ServerSettings{
		Host:             getEnvOrDefault("HOST", "0.0.0.0"),
		Port:             getEnvOrDefault("PORT", "8080"),
		Env:              env,
		TableName:        getEnvOrDefault("TABLE_NAME", "event-registration"),
		LedgerID:         getEnvOrDefault("LEDGER_ID", "main-event"),
		WebhookURL:       getEnvOrDefault("WEBHOOK_URL", ""),
		MaxRegistrations: maxRegistrations,
		DynamoEndpoint:   getEnvOrDefault("DYNAMO_ENDPOINT", ""),
	}
}

func newDynamoClient(ctx context.Context, settings ServerSettings) (*dynamodb.Client, error) {
	if settings.DynamoEndpoint != "" {
		// Local dynamo instance; real credentials are not checked.
		cfg, err := config.LoadDefaultConfig(ctx,
			config.WithRegion("us-east-1"),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("dummy", "dummy", "dummy")),
		)
		if err != nil {
			return nil, err
		}

		return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(settings.DynamoEndpoint)
		}), nil
	}

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}

	return dynamodb.NewFromConfig(cfg), nil
}

func getEnvOrDefault(key string, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}

	return defaultVal
}
