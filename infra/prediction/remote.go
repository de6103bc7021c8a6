// Package prediction provides duration predictors backed by external
// services.
package prediction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kilianp07/orplan/auth"
	"github.com/kilianp07/orplan/core/model"
	coreprediction "github.com/kilianp07/orplan/core/prediction"
	"github.com/kilianp07/orplan/infra/logger"
)

func init() {
	_ = coreprediction.Register("remote", func(cfg coreprediction.Config) (coreprediction.DurationPredictor, error) {
		return NewRemotePredictor(cfg.Remote, cfg.MinMinutes)
	})
}

type remoteRequest struct {
	CaseID    string             `json:"case_id"`
	Procedure string             `json:"procedure"`
	Clinician string             `json:"clinician"`
	Severity  int                `json:"severity"`
	Equipment []string           `json:"equipment"`
	Features  map[string]float64 `json:"features"`
}

type remoteResponse struct {
	Minutes *float64 `json:"minutes"`
}

// RemotePredictor asks an HTTP duration model for each case. Any transport
// or decoding problem yields a failed prediction so the planner falls back.
type RemotePredictor struct {
	url        string
	minMinutes int
	client     *http.Client
	timeout    time.Duration
	cred       *auth.ClientCred
	log        logger.Logger
}

// NewRemotePredictor builds a predictor posting case records to cfg.URL.
func NewRemotePredictor(cfg coreprediction.RemoteConfig, minMinutes int) (*RemotePredictor, error) {
	if cfg.URL == "" {
		return nil, errors.New("remote prediction requires a url")
	}
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	p := &RemotePredictor{
		url:        cfg.URL,
		minMinutes: minMinutes,
		client:     &http.Client{Timeout: timeout},
		timeout:    timeout,
		log:        logger.New("remote-predictor"),
	}
	conf := auth.Conf{ClientID: cfg.ClientID, ClientSecret: cfg.ClientSecret, AuthURL: cfg.TokenURL}
	if conf.Enabled() {
		p.cred = auth.NewClientCred(conf)
	}
	return p, nil
}

// Predict implements core/prediction.DurationPredictor.
func (p *RemotePredictor) Predict(rec model.CaseRecord) coreprediction.Prediction {
	body, err := json.Marshal(remoteRequest{
		CaseID:    rec.ID,
		Procedure: rec.Procedure,
		Clinician: rec.Clinician,
		Severity:  rec.Severity,
		Equipment: rec.EquipmentNames(),
		Features:  rec.Features,
	})
	if err != nil {
		return coreprediction.Failed("encode %s: %v", rec.ID, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	resp, err := p.post(ctx, body, false)
	if err == nil && resp.StatusCode == http.StatusUnauthorized && p.cred != nil {
		_ = resp.Body.Close()
		resp, err = p.post(ctx, body, true)
	}
	if err != nil {
		p.log.Warnf("remote prediction for %s: %v", rec.ID, err)
		return coreprediction.Failed("%s: %v", rec.ID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return coreprediction.Failed("%s: status %d: %s", rec.ID, resp.StatusCode, bytes.TrimSpace(msg))
	}
	var out remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return coreprediction.Failed("%s: decode: %v", rec.ID, err)
	}
	if out.Minutes == nil || *out.Minutes <= 0 {
		return coreprediction.Failed("%s: no positive duration in response", rec.ID)
	}
	return coreprediction.Prediction{Minutes: max(p.minMinutes, int(*out.Minutes+0.5))}
}

func (p *RemotePredictor) post(ctx context.Context, body []byte, refresh bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.cred != nil {
		if refresh {
			if _, err := p.cred.ForceRefresh(ctx); err != nil {
				return nil, err
			}
		}
		if err := p.cred.SetAuthHeader(req); err != nil {
			return nil, fmt.Errorf("auth: %w", err)
		}
	}
	return p.client.Do(req)
}
