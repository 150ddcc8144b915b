// Package artifacts supplies contract ABIs and deployment bytecode by contract name.
// ABIs of the supported contracts are embedded; bytecode comes from compiled
// truffle/hardhat or foundry artifacts, or is registered programmatically.
package artifacts

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Contract names known to the embedded ABI set
const (
	OptimalWalletCreator  = "OptimalWalletCreator"
	UserWalletFactory     = "UserWalletFactory"
	Organization          = "Organization"
	UtilityBrandedToken   = "UtilityBrandedToken"
	TokenRules            = "TokenRules"
	TokenHolder           = "TokenHolder"
	GnosisSafe            = "GnosisSafe"
	DelayedRecoveryModule = "DelayedRecoveryModule"
	CreateAndAddModules   = "CreateAndAddModules"
	ProxyFactory          = "ProxyFactory"
	MockToken             = "MockToken"
)

//go:embed abi/*.json
var embeddedABIs embed.FS

// MetadataNotFoundError is returned when no ABI or bytecode is registered for a contract
type MetadataNotFoundError struct {
	Contract string
	// Kind is "abi" or "bytecode"
	Kind string
}

func (e *MetadataNotFoundError) Error() string {
	return fmt.Sprintf("no %s registered for contract %q", e.Kind, e.Contract)
}

// Artifact is the ABI and creation bytecode of one contract
type Artifact struct {
	Name string
	ABI  abi.ABI
	Bin  []byte
}

// Deployable reports whether creation bytecode is available
func (a *Artifact) Deployable() bool {
	return len(a.Bin) > 0
}

// Provider is a name indexed artifact table. It is safe for concurrent use.
type Provider struct {
	mu        sync.RWMutex
	artifacts map[string]*Artifact
}

// Option configures a Provider
type Option func(*Provider) error

// WithArtifactDir loads every artifact JSON file below dir
func WithArtifactDir(dir string) Option {
	return func(p *Provider) error {
		return p.LoadDir(dir)
	}
}

// WithArtifact registers a contract from its ABI JSON and creation bytecode
func WithArtifact(name, abiJSON string, bin []byte) Option {
	return func(p *Provider) error {
		parsed, err := abi.JSON(strings.NewReader(abiJSON))
		if err != nil {
			return fmt.Errorf("failed to parse ABI for %s: %w", name, err)
		}
		p.put(&Artifact{Name: name, ABI: parsed, Bin: bin})
		return nil
	}
}

// WithBytecode attaches creation bytecode to an already known ABI
func WithBytecode(name string, bin []byte) Option {
	return func(p *Provider) error {
		return p.SetBytecode(name, bin)
	}
}

// NewProvider loads the embedded ABIs and then applies opts in order
func NewProvider(opts ...Option) (*Provider, error) {
	p := &Provider{artifacts: make(map[string]*Artifact)}

	entries, err := fs.ReadDir(embeddedABIs, "abi")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded ABIs: %w", err)
	}
	for _, entry := range entries {
		raw, err := embeddedABIs.ReadFile(path.Join("abi", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read embedded ABI %s: %w", entry.Name(), err)
		}
		parsed, err := abi.JSON(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to parse embedded ABI %s: %w", entry.Name(), err)
		}
		name := strings.TrimSuffix(entry.Name(), ".json")
		p.artifacts[name] = &Artifact{Name: name, ABI: parsed}
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Lookup returns the artifact registered under name
func (p *Provider) Lookup(name string) (*Artifact, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	a, ok := p.artifacts[name]
	if !ok {
		return nil, &MetadataNotFoundError{Contract: name, Kind: "abi"}
	}
	return a, nil
}

// Bytecode returns the creation bytecode of name
func (p *Provider) Bytecode(name string) ([]byte, error) {
	a, err := p.Lookup(name)
	if err != nil {
		return nil, err
	}
	if !a.Deployable() {
		return nil, &MetadataNotFoundError{Contract: name, Kind: "bytecode"}
	}
	return a.Bin, nil
}

// SetBytecode sets the creation bytecode of an already registered contract
func (p *Provider) SetBytecode(name string, bin []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	a, ok := p.artifacts[name]
	if !ok {
		return &MetadataNotFoundError{Contract: name, Kind: "abi"}
	}
	p.artifacts[name] = &Artifact{Name: a.Name, ABI: a.ABI, Bin: bin}
	return nil
}

// Names returns all registered contract names sorted
func (p *Provider) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, 0, len(p.artifacts))
	for name := range p.artifacts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ABIs returns every registered ABI
func (p *Provider) ABIs() []abi.ABI {
	names := p.Names()

	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]abi.ABI, 0, len(names))
	for _, name := range names {
		out = append(out, p.artifacts[name].ABI)
	}
	return out
}

func (p *Provider) put(a *Artifact) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.artifacts[a.Name] = a
}

// compiledArtifact covers truffle/hardhat ("bytecode": "0x..") and foundry ("bytecode": {"object": "0x.."}) layouts
type compiledArtifact struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     json.RawMessage `json:"bytecode"`
}

// LoadDir registers every artifact file below dir. Files without an "abi" key are skipped.
func (p *Provider) LoadDir(dir string) error {
	return filepath.WalkDir(dir, func(file string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(file) != ".json" {
			return nil
		}

		raw, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read artifact %s: %w", file, err)
		}
		a, ok, err := parseArtifact(raw, strings.TrimSuffix(filepath.Base(file), ".json"))
		if err != nil {
			return fmt.Errorf("artifact %s: %w", file, err)
		}
		if ok {
			p.put(a)
		}
		return nil
	})
}

func parseArtifact(raw []byte, fallbackName string) (*Artifact, bool, error) {
	var ca compiledArtifact
	if err := json.Unmarshal(raw, &ca); err != nil {
		// build-info and other non artifact JSON files
		return nil, false, nil
	}
	if len(ca.ABI) == 0 {
		return nil, false, nil
	}

	parsed, err := abi.JSON(bytes.NewReader(ca.ABI))
	if err != nil {
		return nil, false, fmt.Errorf("failed to parse ABI: %w", err)
	}

	name := ca.ContractName
	if name == "" {
		name = fallbackName
	}

	bin, err := decodeBytecode(ca.Bytecode)
	if err != nil {
		return nil, false, err
	}

	return &Artifact{Name: name, ABI: parsed, Bin: bin}, true, nil
}

func decodeBytecode(raw json.RawMessage) ([]byte, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var hexCode string
	if err := json.Unmarshal(raw, &hexCode); err != nil {
		var foundry struct {
			Object string `json:"object"`
		}
		if err := json.Unmarshal(raw, &foundry); err != nil {
			return nil, errors.New("unrecognised bytecode layout")
		}
		hexCode = foundry.Object
	}

	if hexCode == "" || hexCode == "0x" {
		return nil, nil
	}
	if strings.Contains(hexCode, "__") {
		return nil, errors.New("bytecode has unlinked library references")
	}
	if !strings.HasPrefix(hexCode, "0x") {
		hexCode = "0x" + hexCode
	}
	bin, err := hexutil.Decode(hexCode)
	if err != nil {
		return nil, fmt.Errorf("failed to decode bytecode: %w", err)
	}
	return bin, nil
}
