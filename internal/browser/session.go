package browser

import (
	"math/rand"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Pool fixo de user-agents de desktop para rotação por sessão
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
}

// Recursos bloqueados por padrão para acelerar a navegação
var defaultBlockedResources = []proto.NetworkResourceType{
	proto.NetworkResourceTypeImage,
	proto.NetworkResourceTypeFont,
	proto.NetworkResourceTypeStylesheet,
	proto.NetworkResourceTypeMedia,
}

// Cookies de localidade por família de domínio. Alguns lojistas servem
// moeda/idioma errados sem eles.
var localeCookies = map[string][]*proto.NetworkCookieParam{
	"aliexpress": {
		{Name: "aep_usuc_f", Value: "site=bra&c_tp=BRL&region=BR&b_locale=pt_BR", Domain: ".aliexpress.com", Path: "/"},
		{Name: "intl_locale", Value: "pt_BR", Domain: ".aliexpress.com", Path: "/"},
	},
	"amazon": {
		{Name: "i18n-prefs", Value: "BRL", Domain: ".amazon.com.br", Path: "/"},
		{Name: "lc-main", Value: "pt_BR", Domain: ".amazon.com.br", Path: "/"},
	},
	"shein": {
		{Name: "language", Value: "pt-br", Domain: ".shein.com", Path: "/"},
	},
}

// SessionOptions descreve declarativamente a configuração de uma sessão:
// user-agent, lista de interceptação de recursos e cookies a injetar.
type SessionOptions struct {
	UserAgent        string // vazio = sorteia do pool fixo
	BlockedResources []proto.NetworkResourceType
	Cookies          []*proto.NetworkCookieParam
	NoBlocking       bool // desativa a interceptação (páginas que quebram sem CSS/JS auxiliares)
}

// DefaultSessionOptions monta as opções padrão para uma URL alvo:
// user-agent sorteado, bloqueio de recursos pesados e cookies de
// localidade da família de domínio, se houver.
func DefaultSessionOptions(targetURL string) SessionOptions {
	opts := SessionOptions{
		UserAgent:        userAgents[rand.Intn(len(userAgents))],
		BlockedResources: defaultBlockedResources,
	}
	for family, cookies := range localeCookies {
		if strings.Contains(targetURL, family) {
			opts.Cookies = cookies
			break
		}
	}
	return opts
}

// Session é uma página configurada pronta para navegação.
// Deve ser fechada em todos os caminhos de saída do chamador.
type Session struct {
	Page     *rod.Page
	router   *rod.HijackRouter
	browser  *rod.Browser
	isolated bool
}

// newSession cria a página com stealth, aplica user-agent, viewport,
// cookies e a lista de interceptação de recursos.
func newSession(browser *rod.Browser, opts SessionOptions, isolated bool) (*Session, error) {
	page, err := stealth.Page(browser)
	if err != nil {
		if isolated {
			_ = browser.Close()
		}
		return nil, err
	}

	s := &Session{Page: page, browser: browser, isolated: isolated}

	ua := opts.UserAgent
	if ua == "" {
		ua = userAgents[rand.Intn(len(userAgents))]
	}
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
		s.Close()
		return nil, err
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             1366,
		Height:            768,
		DeviceScaleFactor: 1,
	}); err != nil {
		s.Close()
		return nil, err
	}

	if len(opts.Cookies) > 0 {
		if err := page.SetCookies(opts.Cookies); err != nil {
			s.Close()
			return nil, err
		}
	}

	if !opts.NoBlocking && len(opts.BlockedResources) > 0 {
		blocked := make(map[proto.NetworkResourceType]bool, len(opts.BlockedResources))
		for _, rt := range opts.BlockedResources {
			blocked[rt] = true
		}

		router := page.HijackRequests()
		err := router.Add("*", "", func(h *rod.Hijack) {
			if blocked[h.Request.Type()] {
				h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
				return
			}
			h.ContinueRequest(&proto.FetchContinueRequest{})
		})
		if err != nil {
			s.Close()
			return nil, err
		}
		go router.Run()
		s.router = router
	}

	return s, nil
}

// Close libera a sessão. Em sessões isoladas o processo inteiro do
// navegador é encerrado.
func (s *Session) Close() {
	if s.router != nil {
		_ = s.router.Stop()
		s.router = nil
	}
	if s.Page != nil {
		_ = s.Page.Close()
		s.Page = nil
	}
	if s.isolated && s.browser != nil {
		_ = s.browser.Close()
		s.browser = nil
	}
}
