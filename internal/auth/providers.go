package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/tiny-little/royale-web/internal/backend"
)

type ProviderCredentials struct {
	ClientID     string
	ClientSecret string
}

// Provider is an OAuth2 identity provider whose user info endpoint tells us who the
// visitor is once they have granted access
type Provider struct {
	Name        string
	Config      *oauth2.Config
	UserInfoURL string
	AuthOptions []oauth2.AuthCodeOption
	// identity maps the user info response onto the backend's identity payload
	identity func(body []byte) (backend.OAuthIdentity, error)
}

func configureProviders(cfg Config) map[string]*Provider {
	providers := make(map[string]*Provider)
	add := func(p *Provider, creds ProviderCredentials) {
		if creds.ClientID == "" {
			return
		}
		p.Config.ClientID = creds.ClientID
		p.Config.ClientSecret = creds.ClientSecret
		p.Config.RedirectURL = strings.TrimSuffix(cfg.PublicURL, "/") + "/api/auth/" + p.Name + "/callback"
		providers[p.Name] = p
	}
	add(googleProvider(), cfg.Google)
	add(facebookProvider(), cfg.Facebook)
	add(lineProvider(), cfg.Line)
	return providers
}

func googleProvider() *Provider {
	return &Provider{
		Name: "google",
		Config: &oauth2.Config{
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://accounts.google.com/o/oauth2/auth",
				TokenURL: "https://oauth2.googleapis.com/token",
			},
			Scopes: []string{"openid", "email", "profile"},
		},
		UserInfoURL: "https://openidconnect.googleapis.com/v1/userinfo",
		AuthOptions: []oauth2.AuthCodeOption{
			oauth2.AccessTypeOffline,
			oauth2.SetAuthURLParam("prompt", "consent"),
		},
		identity: func(body []byte) (backend.OAuthIdentity, error) {
			var info struct {
				Sub     string `json:"sub"`
				Name    string `json:"name"`
				Email   string `json:"email"`
				Picture string `json:"picture"`
			}
			if err := json.Unmarshal(body, &info); err != nil {
				return backend.OAuthIdentity{}, err
			}
			return backend.OAuthIdentity{Name: info.Name, Image: info.Picture, Email: info.Email, Provider: "google", Sub: info.Sub}, nil
		},
	}
}

func facebookProvider() *Provider {
	return &Provider{
		Name: "facebook",
		Config: &oauth2.Config{
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://www.facebook.com/v18.0/dialog/oauth",
				TokenURL: "https://graph.facebook.com/v18.0/oauth/access_token",
			},
			Scopes: []string{"email", "public_profile"},
		},
		UserInfoURL: "https://graph.facebook.com/me?fields=id,name,email,picture",
		identity: func(body []byte) (backend.OAuthIdentity, error) {
			var info struct {
				ID      string `json:"id"`
				Name    string `json:"name"`
				Email   string `json:"email"`
				Picture struct {
					Data struct {
						URL string `json:"url"`
					} `json:"data"`
				} `json:"picture"`
			}
			if err := json.Unmarshal(body, &info); err != nil {
				return backend.OAuthIdentity{}, err
			}
			return backend.OAuthIdentity{Name: info.Name, Image: info.Picture.Data.URL, Email: info.Email, Provider: "facebook", Sub: info.ID}, nil
		},
	}
}

func lineProvider() *Provider {
	return &Provider{
		Name: "line",
		Config: &oauth2.Config{
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://access.line.me/oauth2/v2.1/authorize",
				TokenURL: "https://api.line.me/oauth2/v2.1/token",
			},
			Scopes: []string{"profile", "openid", "email"},
		},
		UserInfoURL: "https://api.line.me/v2/profile",
		identity: func(body []byte) (backend.OAuthIdentity, error) {
			var info struct {
				UserID      string `json:"userId"`
				DisplayName string `json:"displayName"`
				PictureURL  string `json:"pictureUrl"`
				Email       string `json:"email"`
			}
			if err := json.Unmarshal(body, &info); err != nil {
				return backend.OAuthIdentity{}, err
			}
			// LINE only shares an email address when the channel has been approved for it
			email := info.Email
			if email == "" {
				email = info.UserID + "@line.me"
			}
			return backend.OAuthIdentity{Name: info.DisplayName, Image: info.PictureURL, Email: email, Provider: "line", Sub: info.UserID}, nil
		},
	}
}

// fetchIdentity calls the provider's user info endpoint with the freshly issued token
func (p *Provider) fetchIdentity(ctx context.Context, token *oauth2.Token) (backend.OAuthIdentity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.UserInfoURL, nil)
	if err != nil {
		return backend.OAuthIdentity{}, err
	}
	res, err := p.Config.Client(ctx, token).Do(req)
	if err != nil {
		return backend.OAuthIdentity{}, fmt.Errorf("failed to get %s user info: %w", p.Name, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return backend.OAuthIdentity{}, err
	}
	if res.StatusCode != http.StatusOK {
		return backend.OAuthIdentity{}, fmt.Errorf("got %d response from %s user info: %s", res.StatusCode, p.Name, body)
	}
	identity, err := p.identity(body)
	if err != nil {
		return backend.OAuthIdentity{}, fmt.Errorf("failed to decode %s user info: %w", p.Name, err)
	}
	if identity.Sub == "" {
		return backend.OAuthIdentity{}, fmt.Errorf("%s user info did not identify the user", p.Name)
	}
	return identity, nil
}
