// guardian-logger wires the CCTV Guardian logging pipeline from environment
// configuration and emits a handful of sample events, which doubles as a
// smoke test of the log directory, rotation, masking and the optional HEC
// and S3 hookups.
package main

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/BYEONGJUJO/CCTV-Guardian/pkg/archive"
	archive_s3 "github.com/BYEONGJUJO/CCTV-Guardian/pkg/archive/s3"
	"github.com/BYEONGJUJO/CCTV-Guardian/pkg/forward"
	"github.com/BYEONGJUJO/CCTV-Guardian/pkg/guardian"
	"github.com/BYEONGJUJO/CCTV-Guardian/pkg/models"
)

var args struct {
	LogDir string `arg:"env:GUARDIAN_LOG_DIR" default:"./data/logs"`
	Level  string `arg:"env:GUARDIAN_LOG_LEVEL" default:"INFO"`
	Region string `arg:"env:AWS_REGION" default:"ap-southeast-2"`

	HECEndpoints     []string      `arg:"env:HEC_ENDPOINTS"`
	HECToken         string        `arg:"env:HEC_TOKEN" help:"plain token or arn:aws:secretsmanager: ARN"`
	HECTLSSkipVerify bool          `arg:"env:HEC_TLS_SKIP_VERIFY" default:"true"`
	HECProxy         string        `arg:"env:HEC_PROXY"`
	HECIndex         string        `arg:"env:HEC_INDEX" default:"main"`
	HECSource        string        `arg:"env:HEC_SOURCE" default:"cctv_guardian"`
	HECSourcetype    string        `arg:"env:HEC_SOURCETYPE" default:"cctv_guardian"`
	HECHost          string        `arg:"env:HEC_HOST" default:"guardian"`
	HECTimeout       time.Duration `arg:"env:HEC_TIMEOUT" default:"2s"`
	HECBalance       string        `arg:"env:HEC_BALANCE" default:"roundrobin"`

	S3ArchiveURL      string `arg:"env:S3_ARCHIVE_URL" help:"example: https://YOURBUCKET.s3.ap-southeast-2.amazonaws.com/YOURFOLDER/"`
	S3AccessKeyID     string `arg:"env:S3_ACCESS_KEY_ID"`
	S3AccessKeySecret string `arg:"env:S3_ACCESS_KEY_SECRET"`
}

func main() {
	arg.MustParse(&args)

	cfg := guardian.Config{
		LogDir:   args.LogDir,
		MinLevel: models.Level(strings.ToUpper(args.Level)),
	}

	var awsCfg aws.Config
	if len(args.HECEndpoints) > 0 || args.S3ArchiveURL != "" {
		awsCfg = loadAWSConfig()
	}

	if len(args.HECEndpoints) > 0 {
		fwd, err := forward.New(forward.Config{
			Endpoints:       args.HECEndpoints,
			TLSSkipVerify:   args.HECTLSSkipVerify,
			Proxy:           args.HECProxy,
			Token:           resolveToken(awsCfg, args.HECToken),
			Index:           args.HECIndex,
			Source:          args.HECSource,
			SourceType:      args.HECSourcetype,
			Host:            args.HECHost,
			SendTimeout:     args.HECTimeout,
			BalanceStrategy: args.HECBalance,
		})
		if err != nil {
			log.Printf("Threat forwarding disabled: %v", err)
		} else {
			cfg.Forwarder = fwd
		}
	}

	if args.S3ArchiveURL != "" {
		backend, err := archive_s3.NewBackend(archive.Config{
			URL:       args.S3ArchiveURL,
			AccessKey: args.S3AccessKeyID,
			SecretKey: args.S3AccessKeySecret,
			Region:    args.Region,
		}, awsCfg)
		if err != nil {
			log.Printf("Rotated-file archival disabled: %v", err)
		} else {
			cfg.Archive = backend
		}
	}

	logger, err := guardian.New(cfg)
	if err != nil {
		log.Fatalf("Unable to set up logging: %v", err)
	}
	defer logger.Close()

	emitSamples(logger)

	log.Printf("Sample records written under %s (events.jsonl, threats.jsonl)", args.LogDir)
}

func emitSamples(logger *guardian.Logger) {
	if err := logger.LogNetworkEvent("connection", "192.168.1.100", "192.168.1.10", 554, "TCP", nil); err != nil {
		log.Printf("network event: %v", err)
	}

	if err := logger.LogAPIRequest("POST", "/api/login", "192.168.1.50", 200, 45.3, map[string]interface{}{
		"username": "admin",
	}); err != nil {
		log.Printf("api request: %v", err)
	}

	if err := logger.LogThreat("network", map[string]interface{}{
		"threat_type":   "PORT_SCAN",
		"severity":      "HIGH",
		"src_ip":        "10.0.0.5",
		"ports_scanned": 15,
	}); err != nil {
		log.Printf("threat: %v", err)
	}
}

func loadAWSConfig() aws.Config {
	var opts []func(*config.LoadOptions) error
	opts = append(opts, config.WithRegion(args.Region))
	if args.S3AccessKeyID != "" && args.S3AccessKeySecret != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(args.S3AccessKeyID, args.S3AccessKeySecret, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(context.TODO(), opts...)
	if err != nil {
		log.Fatalf("Unable to load SDK config: %v", err)
	}
	return awsCfg
}

// resolveToken fetches the HEC token from AWS Secrets Manager when the
// configured value is a secret ARN.
func resolveToken(awsCfg aws.Config, token string) string {
	if !strings.HasPrefix(token, "arn:aws:secretsmanager:") {
		return token
	}

	log.Println("Getting token from AWS Secrets Manager")
	secretMgr := secretsmanager.NewFromConfig(awsCfg, func(o *secretsmanager.Options) {
		o.Region = args.Region
	})
	secret, err := secretMgr.GetSecretValue(context.Background(), &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(token),
	})
	if err != nil {
		log.Fatalf("Couldn't get secret from AWS Secrets Manager. Here's why: %v", err)
	}
	return *secret.SecretString
}
