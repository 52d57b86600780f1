package github_integration

import (
	"context"
	"net/http"
	"sync"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v53/github"
	"golang.org/x/oauth2"
)

type Config struct {
	Owner string `default:"jetjinser"`
	Repo  string `default:"fot"`

	// Login, when set, is the account the credentials are expected to belong to.
	Login string
	Token string

	AppID          int64  `split_words:"true"`
	InstallationID int64  `split_words:"true"`
	PrivateKeyPath string `split_words:"true"`

	WebhookSecret string   `split_words:"true"`
	Events        []string `default:"discussion"`
	QueueSize     int      `split_words:"true" default:"64"`
	VerifyRepo    bool     `split_words:"true" default:"false"`
}

func (c Config) hasApp() bool {
	return c.AppID != 0 && c.InstallationID != 0 && c.PrivateKeyPath != ""
}

func (c Config) authenticated() bool {
	return c.hasApp() || c.Token != ""
}

type key struct {
	appID          int64
	installationID int64
	privateKeyPath string
	token          string
}

var (
	mu    sync.Mutex
	cache sync.Map
)

// For returns a GitHub client for c's credentials: an App installation when
// configured, else a personal access token, else anonymous.
func For(c Config) (*github.Client, error) {
	k := key{appID: c.AppID, installationID: c.InstallationID, privateKeyPath: c.PrivateKeyPath, token: c.Token}
	if v, ok := cache.Load(k); ok {
		return v.(*github.Client), nil
	}

	mu.Lock()
	defer mu.Unlock()

	var httpClient *http.Client
	switch {
	case c.hasApp():
		transport, err := ghinstallation.NewKeyFromFile(
			http.DefaultTransport,
			c.AppID,
			c.InstallationID,
			c.PrivateKeyPath,
		)
		if err != nil {
			return nil, err
		}
		httpClient = &http.Client{Transport: transport}
	case c.Token != "":
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.Token})
		httpClient = oauth2.NewClient(context.Background(), ts)
	}

	r := github.NewClient(httpClient)
	cache.Store(k, r)
	return r, nil
}
