// Package proxy переписывает страницы взаимодействий удалённого сервера
// так, чтобы ссылки и формы вели через публичный прокси хост-приложения.
package proxy

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// Rewriter заменяет внутренние адреса сервера на адрес прокси.
type Rewriter struct {
	publicBase *url.URL
}

// NewRewriter создаёт Rewriter для публичного адреса развёртывания,
// например https://player.example.org.
func NewRewriter(publicBase string) (*Rewriter, error) {
	base, err := url.Parse(strings.TrimRight(publicBase, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse public url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("public url %q must be absolute", publicBase)
	}
	return &Rewriter{publicBase: base}, nil
}

// ProxyURL возвращает адрес прокси для взаимодействия:
// {public base}/runs/{run id}/proxy/{interaction id}.
func (rw *Rewriter) ProxyURL(runID uuid.UUID, interactionID string) string {
	return rw.publicBase.JoinPath("runs", runID.String(), "proxy", interactionID).String()
}

// Rewrite заменяет все вхождения interactionsURI и notificationsURI
// в page на адрес прокси для взаимодействия.
//
// Замена выполняется за один проход, поэтому подставленный адрес
// повторно не переписывается. Пустые адреса пропускаются.
func (rw *Rewriter) Rewrite(page string, runID uuid.UUID, interactionID, notificationsURI, interactionsURI string) string {
	target := rw.ProxyURL(runID, interactionID)

	var pairs []string
	// Более длинный адрес первым: один может быть префиксом другого.
	for _, uri := range longestFirst(interactionsURI, notificationsURI) {
		if uri == "" {
			continue
		}
		pairs = append(pairs, uri, target)
	}
	if len(pairs) == 0 {
		return page
	}

	return strings.NewReplacer(pairs...).Replace(page)
}

func longestFirst(a, b string) []string {
	if len(b) > len(a) {
		return []string{b, a}
	}
	return []string{a, b}
}
