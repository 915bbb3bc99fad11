// Command digest is the AWS Lambda entry point for scheduled digest runs.
//
// Environment:
//   - DIGEST_CONFIG:        path to a config file (default: embedded defaults)
//   - DIGEST_NAMES:         comma separated digests to run (default: all)
//   - DIGEST_ARCHIVE:       sqlite archive path, e.g. /tmp/archive.db (default: none)
//   - DIGEST_SMTP_*, DIGEST_MAIL_*, and the LLM key named by summarization.api_key_env
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/TobiSchelling/forumdigest/internal/config"
	"github.com/TobiSchelling/forumdigest/internal/database"
	"github.com/TobiSchelling/forumdigest/internal/pipeline"
)

// Response summarizes one invocation.
type Response struct {
	StatusCode int            `json:"statusCode"`
	Message    string         `json:"message"`
	Digests    []DigestResult `json:"digests"`
}

// DigestResult is the outcome of one digest.
type DigestResult struct {
	Name        string `json:"name"`
	Listed      int    `json:"listed"`
	Succeeded   int    `json:"succeeded"`
	Dropped     int    `json:"dropped"`
	Unavailable int    `json:"unavailable"`
	Sent        bool   `json:"sent"`
	Error       string `json:"error,omitempty"`
}

// Handler runs the configured digests once per scheduled event. Mail and
// upstream failures are reported in the response, never as an invocation
// error, so the scheduler does not retry and send duplicates.
func Handler(ctx context.Context, event events.CloudWatchEvent) (Response, error) {
	log.Printf("Starting digest run (event %s from %s)", event.ID, event.Source)

	cfg, err := loadConfig()
	if err != nil {
		log.Printf("Config error: %v", err)
		return Response{StatusCode: 400, Message: err.Error()}, err
	}

	digests, err := pipeline.SelectDigests(cfg, splitNames(os.Getenv("DIGEST_NAMES")))
	if err != nil {
		return Response{StatusCode: 400, Message: err.Error()}, err
	}

	secrets, err := config.LoadSecrets()
	if err != nil {
		return Response{StatusCode: 400, Message: err.Error()}, err
	}

	var db *database.DB
	if path := os.Getenv("DIGEST_ARCHIVE"); path != "" {
		db, err = database.Open(path)
		if err != nil {
			log.Printf("Archive unavailable: %v", err)
			db = nil
		} else {
			defer db.Close()
		}
	}

	results := pipeline.RunAll(ctx, cfg, digests, pipeline.ProviderFor(cfg), pipeline.NotifierFor(cfg, secrets), db, pipeline.Options{})

	resp := Response{StatusCode: 200}
	sent := 0
	for _, r := range results {
		dr := DigestResult{
			Name:        r.Digest,
			Listed:      len(r.Entries),
			Succeeded:   r.Succeeded,
			Dropped:     r.Dropped,
			Unavailable: r.Unavailable,
			Sent:        r.EmailSent,
		}
		for _, step := range r.Steps {
			if step.Err != nil {
				dr.Error = fmt.Sprintf("%s: %v", step.Name, step.Err)
			}
		}
		if r.EmailSent {
			sent++
		}
		resp.Digests = append(resp.Digests, dr)
	}
	resp.Message = fmt.Sprintf("Ran %d digests, %d emails sent", len(results), sent)
	log.Print(resp.Message)
	return resp, nil
}

func loadConfig() (*config.Config, error) {
	if path := os.Getenv("DIGEST_CONFIG"); path != "" {
		return config.Load(path)
	}
	return config.Default()
}

func splitNames(s string) []string {
	var names []string
	for _, n := range strings.Split(s, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return names
}

func main() {
	lambda.Start(Handler)
}
