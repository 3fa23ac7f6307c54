package browser

import (
	"fmt"
	"log"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// Estados do processo do navegador compartilhado
const (
	StateIdle        = "idle" // ainda não lançado (lançamento é preguiçoso)
	StateHealthy     = "healthy"
	StateRelaunching = "relaunching"
	StateFailed      = "failed"
)

// Config define como o pool lança o navegador
type Config struct {
	Bin      string   // caminho do binário; vazio = baixar o padrão
	Headless bool
	Proxies  []string // rotação round-robin, um proxy por lançamento
}

// Pool gerencia um único processo de navegador compartilhado.
// O lançamento é preguiçoso e a saúde é verificada antes de cada reuso;
// em caso de falha o processo é relançado de forma transparente.
//
// O pool nunca tenta novamente uma navegação que falhou: a política de
// retry pertence aos chamadores (extração e verificação).
type Pool struct {
	mu       sync.Mutex
	cfg      Config
	browser  *rod.Browser
	state    string
	proxyIdx int // avança a cada lançamento, persiste entre relançamentos
}

// NewPool cria o pool sem lançar o navegador
func NewPool(cfg Config) *Pool {
	return &Pool{cfg: cfg, state: StateIdle}
}

// State retorna o estado atual do processo compartilhado
func (p *Pool) State() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// launchBrowser lança um novo processo de navegador com a configuração do
// pool. Se houver lista de proxies, o índice round-robin avança aqui.
func (p *Pool) launchBrowser() (*rod.Browser, error) {
	bin := p.cfg.Bin
	if bin == "" {
		log.Println("Nenhum binário de navegador configurado, baixando o padrão...")
		path, err := launcher.NewBrowser().Get()
		if err != nil {
			return nil, fmt.Errorf("baixar navegador: %w", err)
		}
		bin = path
	}

	l := launcher.New().
		Headless(p.cfg.Headless).
		Bin(bin).
		NoSandbox(true).
		Set("remote-allow-origins", "*")

	if len(p.cfg.Proxies) > 0 {
		proxy := p.cfg.Proxies[p.proxyIdx%len(p.cfg.Proxies)]
		p.proxyIdx++
		l = l.Proxy(proxy)
		log.Printf("Navegador usando proxy #%d", p.proxyIdx)
	}

	url, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("lançar navegador: %w", err)
	}

	browser := rod.New().ControlURL(url)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("conectar ao navegador: %w", err)
	}

	return browser, nil
}

// ensure garante um navegador saudável, lançando ou relançando se preciso.
// A sondagem de versão detecta processos que morreram ou desconectaram.
func (p *Pool) ensure() (*rod.Browser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.browser != nil {
		if _, err := p.browser.Version(); err == nil {
			p.state = StateHealthy
			return p.browser, nil
		}
		log.Println("Navegador não responde à sondagem de versão, relançando...")
		p.state = StateRelaunching
		_ = p.browser.Close()
		p.browser = nil
	}

	browser, err := p.launchBrowser()
	if err != nil {
		p.state = StateFailed
		return nil, err
	}
	p.browser = browser
	p.state = StateHealthy
	log.Println("Navegador compartilhado pronto")
	return browser, nil
}

// AcquireSession retorna uma sessão de página configurada no navegador
// compartilhado. A sessão deve sempre ser fechada pelo chamador.
func (p *Pool) AcquireSession(opts SessionOptions) (*Session, error) {
	browser, err := p.ensure()
	if err != nil {
		return nil, err
	}
	return newSession(browser, opts, false)
}

// NewIsolatedSession lança um processo de navegador totalmente independente
// para operações que não podem competir com o pool compartilhado nem ser
// derrubadas por um relançamento concorrente. Fechar a sessão encerra o
// processo inteiro.
func (p *Pool) NewIsolatedSession(opts SessionOptions) (*Session, error) {
	p.mu.Lock()
	browser, err := p.launchBrowser()
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return newSession(browser, opts, true)
}

// ForceRestart encerra o processo compartilhado. Sessões em andamento nesse
// processo falham e devem ser tratadas pelos seus chamadores; o próximo
// AcquireSession relança.
func (p *Pool) ForceRestart() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.browser != nil {
		log.Println("Reinício forçado do navegador compartilhado")
		_ = p.browser.Close()
		p.browser = nil
	}
	p.state = StateIdle
}

// Close encerra o pool
func (p *Pool) Close() {
	p.ForceRestart()
}
