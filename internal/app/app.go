// Package app builds the request handler from configuration. Both entry
// points share it.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"talk-bridge/handler"
	"talk-bridge/internal/attachment"
	"talk-bridge/internal/config"
	"talk-bridge/internal/dedup"
	"talk-bridge/internal/extract"
	"talk-bridge/internal/history"
	"talk-bridge/internal/integrations/assemblyai"
	"talk-bridge/internal/integrations/llm"
	"talk-bridge/internal/integrations/paramstore"
	"talk-bridge/internal/integrations/talkjs"
	"talk-bridge/internal/repository"
	"talk-bridge/internal/transcode"
	"talk-bridge/internal/usecase"
)

// Parameter names read under PARAM_PREFIX when the matching variable is unset.
const (
	geminiParam     = "gemini-api-key"
	assemblyAIParam = "assemblyai-api-key"
	talkJSParam     = "talkjs-secret-key"
)

var loadAWSConfig = func(ctx context.Context) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx)
}

// NewHandler wires every collaborator described by cfg. AWS is only contacted
// when PARAM_PREFIX or DEDUP_TABLE is set.
func NewHandler(ctx context.Context, cfg *config.Config) (*handler.Handler, error) {
	var (
		awsCfg    aws.Config
		awsLoaded bool
	)
	awsConfig := func() (aws.Config, error) {
		if awsLoaded {
			return awsCfg, nil
		}
		c, err := loadAWSConfig(ctx)
		if err != nil {
			return aws.Config{}, fmt.Errorf("app: load aws config: %w", err)
		}
		awsCfg, awsLoaded = c, true
		return awsCfg, nil
	}

	var params paramstore.TokenGetter
	if cfg.ParamPrefix != "" {
		ac, err := awsConfig()
		if err != nil {
			return nil, err
		}
		store, err := paramstore.New(awsssm.NewFromConfig(ac), cfg.ParamPrefix)
		if err != nil {
			return nil, fmt.Errorf("app: create parameter store client: %w", err)
		}
		params = store
	}

	geminiKey, err := paramstore.Resolve(ctx, params, paramstore.Secret{Name: geminiParam, Value: cfg.GeminiAPIKey})
	if err != nil {
		return nil, fmt.Errorf("app: resolve gemini api key: %w", err)
	}
	assemblyKey, err := paramstore.Resolve(ctx, params, paramstore.Secret{Name: assemblyAIParam, Value: cfg.AssemblyAIAPIKey})
	if err != nil {
		return nil, fmt.Errorf("app: resolve assemblyai api key: %w", err)
	}

	completer, err := llm.NewClient(geminiKey, llm.WithBaseURL(cfg.LLMBaseURL), llm.WithModel(cfg.LLMModel))
	if err != nil {
		return nil, err
	}
	transcriber, err := assemblyai.NewClient(assemblyKey,
		assemblyai.WithTimeout(cfg.TranscribeTimeout),
		assemblyai.WithPollInterval(cfg.TranscribePollInterval),
	)
	if err != nil {
		return nil, err
	}
	transcoder, err := transcode.New(transcode.Strategy(cfg.TranscodeStrategy),
		transcode.WithBinary(cfg.FFmpegPath),
		transcode.WithTimeout(cfg.TranscodeTimeout),
	)
	if err != nil {
		return nil, err
	}

	mode := handler.Mode(cfg.ReplyMode)
	prompt := usecase.DirectSystemPrompt
	if mode == handler.ModeRelay {
		prompt = usecase.RelaySystemPrompt
	}
	store, err := history.NewStore(prompt, cfg.HistoryCap)
	if err != nil {
		return nil, err
	}

	deps := usecase.Deps{
		Fetcher:     attachment.NewFetcher(),
		Transcoder:  transcoder,
		Transcriber: transcriber,
		Extractor:   extract.New(cfg.ExtractTimeout),
		Completer:   completer,
		History:     store,
	}

	if mode == handler.ModeRelay {
		secret, err := paramstore.Resolve(ctx, params, paramstore.Secret{Name: talkJSParam, Value: cfg.TalkJSSecretKey})
		if err != nil {
			return nil, fmt.Errorf("app: resolve talkjs secret key: %w", err)
		}
		relayer, err := talkjs.NewClient(cfg.TalkJSAppID, secret, cfg.TalkJSBotID)
		if err != nil {
			return nil, err
		}
		deps.Relayer = relayer

		if cfg.DedupTable != "" {
			ac, err := awsConfig()
			if err != nil {
				return nil, err
			}
			ledger, err := repository.New(awsdynamodb.NewFromConfig(ac), cfg.DedupTable, cfg.DedupTTL)
			if err != nil {
				return nil, fmt.Errorf("app: create dedup ledger: %w", err)
			}
			deps.Ledger = ledger
		} else {
			deps.Ledger = dedup.NewMemoryLedger(cfg.DedupTTL)
		}
	}

	svc, err := usecase.NewTalkService(deps, usecase.WithSpoolDir(cfg.SpoolDir))
	if err != nil {
		return nil, err
	}

	slog.Info("handler configured",
		"mode", cfg.ReplyMode,
		"history_cap", store.Cap(),
		"transcode_strategy", cfg.TranscodeStrategy,
		"dedup_table", cfg.DedupTable,
		"spool_dir", cfg.SpoolDir,
	)
	return handler.NewHandler(svc, mode)
}
