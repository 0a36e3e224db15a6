// Package auth builds an authenticated, read-only Sheets API client from
// service-account credentials.
package auth

import (
	"context"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/ideaspaper/sheets-reader-mcp/internal/config"
)

// Scopes requested for every credential source.
var Scopes = []string{sheets.SpreadsheetsReadonlyScope}

// JWTConfig resolves creds into a service-account JWT configuration. Every
// failure is a *config.ConfigurationError.
func JWTConfig(creds config.Credentials) (*jwt.Config, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	switch creds.Source() {
	case config.SourceKeyPair:
		if err := checkPrivateKey([]byte(creds.PrivateKey)); err != nil {
			return nil, &config.ConfigurationError{Reason: "invalid " + config.EnvPrivateKey, Err: err}
		}
		return &jwt.Config{
			Email:      creds.ClientEmail,
			PrivateKey: []byte(creds.PrivateKey),
			Scopes:     Scopes,
			TokenURL:   google.JWTTokenURL,
		}, nil

	case config.SourceEncodedJSON:
		credBytes, err := base64.StdEncoding.DecodeString(creds.CredentialsConfig)
		if err != nil {
			return nil, &config.ConfigurationError{Reason: "failed to decode " + config.EnvCredentialsConfig, Err: err}
		}
		return jwtFromJSON(credBytes, config.EnvCredentialsConfig)

	case config.SourceServiceAccount:
		credBytes, err := os.ReadFile(creds.ServiceAccountPath)
		if err != nil {
			return nil, &config.ConfigurationError{Reason: "failed to read service account file", Err: err}
		}
		return jwtFromJSON(credBytes, creds.ServiceAccountPath)
	}

	return nil, &config.ConfigurationError{Reason: "no service account credentials"}
}

func jwtFromJSON(credBytes []byte, origin string) (*jwt.Config, error) {
	conf, err := google.JWTConfigFromJSON(credBytes, Scopes...)
	if err != nil {
		return nil, &config.ConfigurationError{Reason: fmt.Sprintf("invalid service account key in %s", origin), Err: err}
	}
	if err := checkPrivateKey(conf.PrivateKey); err != nil {
		return nil, &config.ConfigurationError{Reason: fmt.Sprintf("invalid private key in %s", origin), Err: err}
	}
	return conf, nil
}

// checkPrivateKey parses the key the same way the token source will, so a
// broken key fails at startup instead of on the first call.
func checkPrivateKey(key []byte) error {
	block, _ := pem.Decode(key)
	if block == nil {
		return fmt.Errorf("key is not PEM encoded")
	}
	if _, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		return nil
	}
	if _, err := x509.ParsePKCS1PrivateKey(block.Bytes); err != nil {
		return fmt.Errorf("key is neither PKCS#8 nor PKCS#1: %w", err)
	}
	return nil
}

// NewSheetsService creates a Sheets API client authenticated as the
// configured service account. The context bounds token refreshes for the
// lifetime of the client.
func NewSheetsService(ctx context.Context, creds config.Credentials, logger *slog.Logger, opts ...option.ClientOption) (*sheets.Service, error) {
	conf, err := JWTConfig(creds)
	if err != nil {
		return nil, err
	}
	if logger != nil {
		logger.Info("using service account", "source", creds.Source(), "email", conf.Email)
	}

	opts = append([]option.ClientOption{option.WithHTTPClient(conf.Client(ctx))}, opts...)
	sheetsService, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return sheetsService, nil
}
