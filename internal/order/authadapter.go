package order

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

type AuthAdapterLogHook struct{}

func (h *AuthAdapterLogHook) Fire(entry *logrus.Entry) error {
	entry.Message = "AuthAdapter: " + entry.Message
	return nil
}

func (h *AuthAdapterLogHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

type Role string

const (
	RoleCustomer Role = "customer"
	RoleShop     Role = "shop"
)

type Principal struct {
	UserID uint
	Role   Role
}

// AuthClient resolves a client token into an authenticated principal.
type AuthClient interface {
	Auth(clientToken string) (int, Principal, error)
}

type authAdapter struct {
	SystemToken string
	client      http.Client
	log         *logrus.Entry
	authHost    string
	authPort    string
}

func NewAuthAdapter(log *logrus.Entry, authHost, authPort string) *authAdapter {
	c := http.Client{
		Timeout: time.Second * 10,
	}

	return &authAdapter{
		client:   c,
		log:      log,
		authHost: authHost,
		authPort: authPort,
	}
}

// Login obtains the system token this service uses on validate requests.
func (a *authAdapter) Login(email, password string) error {
	requestBody := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{
		Email:    email,
		Password: password,
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		a.log.Errorf("login: failed to marshal login request body - %v", err)
		return NewError(JsonAppError, "failed to marshal login request body", 400, err)
	}

	url := fmt.Sprintf("http://%s%s%s", a.authHost, a.authPort, "/system/auth/login")
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		a.log.Debugf("login: failed to create login request with err - %v", err)
		return NewError(ServerAppError, "failed to create login request", 500, err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		a.log.Debugf("login: failed login request with err - %v", err)
		return NewError(ServerAppError, "failed login request", 500, err)
	}
	defer resp.Body.Close()

	bts, err := io.ReadAll(resp.Body)
	if err != nil {
		a.log.Debugf("login: failed readAll body - %v", err)
		return NewError(ServerAppError, "failed read body", 500, err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		cookies := resp.Cookies()

		var token string
		for _, cookie := range cookies {
			if cookie.Name == "Authorization" {
				token = cookie.Value
				break
			}
		}

		if token == "" {
			a.log.Debug("login: token not found")
			return NewError(ServerAppError, "token not found (cookies from authservice)", 500, nil)
		}

		a.SystemToken = token

		a.log.Debugf("login: success login")

		return nil
	case http.StatusBadRequest:
		return NewError(HttpError, "authservice /auth/login StatusBadRequest", 400, fmt.Errorf("body - %s", string(bts)))
	case http.StatusUnauthorized:
		return NewError(HttpError, "authservice /auth/login Unauthorized", 401, nil)
	case http.StatusForbidden:
		return NewError(HttpError, "authservice /auth/login Forbidden", 403, nil)
	default:
		return NewError(HttpError, "authservice /auth/login unexpected", 500, fmt.Errorf("statuscode - %d, body - %s", resp.StatusCode, string(bts)))
	}
}

// Auth validates a client token and returns the principal with its role.
// A non-200 status from the auth service is passed back as-is with an
// empty principal.
func (a *authAdapter) Auth(clientToken string) (int, Principal, error) {
	url := fmt.Sprintf("http://%s%s%s", a.authHost, a.authPort, "/system/auth/validate")

	req, err := http.NewRequest(http.MethodPost, url, nil)
	if err != nil {
		a.log.Errorf("auth: failed create authservice request /auth/validate - %v", err)
		return 0, Principal{}, NewError(ServerAppError, "failed create auth request /auth/validate", 500, err)
	}

	req.Header.Set("Authorization", a.SystemToken)
	req.Header.Set("X-System-Token", clientToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return 0, Principal{}, NewError(ServerAppError, "failed authservice request", 500, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, Principal{}, nil
	}

	var responseBody struct {
		UserID uint   `json:"userId"`
		Role   string `json:"role"`
	}

	err = json.NewDecoder(resp.Body).Decode(&responseBody)
	if err != nil {
		a.log.Errorf("auth: failed to decode response body: %v", err)
		return 0, Principal{}, NewError(ServerAppError, "failed to decode response body", 500, err)
	}

	role := RoleCustomer
	if responseBody.Role == string(RoleShop) {
		role = RoleShop
	}

	return resp.StatusCode, Principal{UserID: responseBody.UserID, Role: role}, nil
}
