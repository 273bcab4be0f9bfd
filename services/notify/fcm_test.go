package notify

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testPrivateKeyPEM(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}))
}

func newTestFCMClient(t *testing.T, sendHandler http.HandlerFunc) *FCMClient {
	t.Helper()

	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		if r.Form.Get("grant_type") != "urn:ietf:params:oauth:grant-type:jwt-bearer" {
			http.Error(w, "bad grant type", http.StatusBadRequest)
			return
		}
		if r.Form.Get("assertion") == "" {
			http.Error(w, "missing assertion", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "test-access-token",
			"expires_in":   3600,
		})
	}))
	sendServer := httptest.NewServer(sendHandler)
	t.Cleanup(func() {
		tokenServer.Close()
		sendServer.Close()
	})

	client, err := NewFCMClient("test-project", "svc@test-project.iam.gserviceaccount.com", testPrivateKeyPEM(t))
	if err != nil {
		t.Fatalf("failed to create FCM client: %v", err)
	}
	client.tokenURL = tokenServer.URL
	client.sendURL = sendServer.URL
	return client
}

func TestFCMSendMulticastSuccess(t *testing.T) {
	var gotAuth string
	client := newTestFCMClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")

		var payload struct {
			Message struct {
				Token        string            `json:"token"`
				Notification map[string]string `json:"notification"`
			} `json:"message"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		if payload.Message.Token == "" || payload.Message.Notification["title"] == "" {
			http.Error(w, "incomplete message", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"name": "projects/test-project/messages/1"})
	})

	msg := Message{Title: "삼성전자 목표가 상승 도달", Body: "현재가 71200원 (목표가 70000원)"}
	results, err := client.SendMulticast(context.Background(), []string{"tok-1", "tok-2"}, []Message{msg})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotAuth != "Bearer test-access-token" {
		t.Errorf("authorization header = %q", gotAuth)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	for _, res := range results {
		if res.Err != nil || res.Unregistered {
			t.Errorf("result for %s: err=%v unregistered=%v", res.Token, res.Err, res.Unregistered)
		}
	}
}

func TestFCMSendMulticastClassifiesOutcomes(t *testing.T) {
	client := newTestFCMClient(t, func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Message struct {
				Token string `json:"token"`
			} `json:"message"`
		}
		json.NewDecoder(r.Body).Decode(&payload)

		switch payload.Message.Token {
		case "tok-gone":
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error": map[string]interface{}{
					"code":   404,
					"status": "NOT_FOUND",
					"details": []map[string]string{
						{"@type": "type.googleapis.com/google.firebase.fcm.v1.FcmError", "errorCode": "UNREGISTERED"},
					},
				},
			})
		case "tok-flaky":
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error": map[string]interface{}{"code": 503, "status": "UNAVAILABLE"},
			})
		default:
			json.NewEncoder(w).Encode(map[string]string{"name": "ok"})
		}
	})

	msg := Message{Title: "t", Body: "b"}
	results, err := client.SendMulticast(context.Background(), []string{"tok-gone", "tok-flaky", "tok-ok"}, []Message{msg})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !results[0].Unregistered {
		t.Error("tok-gone not classified as unregistered")
	}
	if results[1].Unregistered || results[1].Err == nil {
		t.Errorf("tok-flaky should be a transient failure, got unregistered=%v err=%v", results[1].Unregistered, results[1].Err)
	}
	if results[2].Unregistered || results[2].Err != nil {
		t.Errorf("tok-ok should succeed, got unregistered=%v err=%v", results[2].Unregistered, results[2].Err)
	}
}

func TestFCMTokenExchangeFailure(t *testing.T) {
	client := newTestFCMClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"name": "ok"})
	})

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer failing.Close()
	client.tokenURL = failing.URL

	_, err := client.SendMulticast(context.Background(), []string{"tok-1"}, []Message{{Title: "t"}})
	if err == nil {
		t.Fatal("expected error when the token exchange fails")
	}
}

func TestNewFCMClientValidation(t *testing.T) {
	if _, err := NewFCMClient("", "", ""); err == nil {
		t.Error("expected error for missing credentials")
	}
	if _, err := NewFCMClient("p", "e", "not a pem key"); err == nil {
		t.Error("expected error for malformed private key")
	}
}
