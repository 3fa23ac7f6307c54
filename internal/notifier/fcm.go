package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Lotes maiores que isso o FCM rejeita
const fcmMaxBatch = 1000

// FCMSender entrega notificações pela API HTTP legada do FCM
type FCMSender struct {
	serverKey string
	endpoint  string
	client    *http.Client
}

// NewFCMSender cria o remetente FCM. endpoint vazio usa o endpoint padrão.
func NewFCMSender(serverKey, endpoint string) *FCMSender {
	if endpoint == "" {
		endpoint = "https://fcm.googleapis.com/fcm/send"
	}
	return &FCMSender{
		serverKey: serverKey,
		endpoint:  endpoint,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

type fcmRequest struct {
	RegistrationIDs []string          `json:"registration_ids"`
	Notification    fcmNotification   `json:"notification"`
	Data            map[string]string `json:"data,omitempty"`
	Priority        string            `json:"priority"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type fcmResponse struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
	Results []struct {
		MessageID string `json:"message_id"`
		Error     string `json:"error"`
	} `json:"results"`
}

// Send envia a notificação em lotes. Tokens que o FCM reporta como
// NotRegistered/InvalidRegistration voltam na lista de inválidos.
func (s *FCMSender) Send(ctx context.Context, tokens []string, title, body string, data map[string]string) ([]string, error) {
	var invalid []string

	for start := 0; start < len(tokens); start += fcmMaxBatch {
		end := start + fcmMaxBatch
		if end > len(tokens) {
			end = len(tokens)
		}
		batch := tokens[start:end]

		batchInvalid, err := s.sendBatch(ctx, batch, title, body, data)
		if err != nil {
			return invalid, err
		}
		invalid = append(invalid, batchInvalid...)
	}
	return invalid, nil
}

func (s *FCMSender) sendBatch(ctx context.Context, tokens []string, title, body string, data map[string]string) ([]string, error) {
	payload, err := json.Marshal(fcmRequest{
		RegistrationIDs: tokens,
		Notification:    fcmNotification{Title: title, Body: body},
		Data:            data,
		Priority:        "high",
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+s.serverKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fcm: status code %d", resp.StatusCode)
	}

	var parsed fcmResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("fcm: decodificar resposta: %w", err)
	}

	var invalid []string
	for i, result := range parsed.Results {
		if i >= len(tokens) {
			break
		}
		switch result.Error {
		case "NotRegistered", "InvalidRegistration":
			invalid = append(invalid, tokens[i])
		}
	}
	return invalid, nil
}
