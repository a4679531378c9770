package password

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Blacklist son contraseñas conocidas, comparadas sin mayúsculas ni
// espacios alrededor. Es inmutable después de cargarse; un nil no rechaza nada.
type Blacklist struct {
	words map[string]struct{}
}

func normalizeWord(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// NewBlacklist arma la lista a partir de palabras sueltas.
func NewBlacklist(words ...string) *Blacklist {
	b := &Blacklist{words: make(map[string]struct{}, len(words))}
	for _, w := range words {
		b.add(w)
	}
	return b
}

// LoadBlacklist lee un archivo con una contraseña por línea. Las líneas
// vacías y las que empiezan con # se ignoran. Un path vacío da una lista vacía.
func LoadBlacklist(path string) (*Blacklist, error) {
	b := NewBlacklist()
	if strings.TrimSpace(path) == "" {
		return b, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("password blacklist: %w", err)
	}
	defer f.Close()
	if err := b.readFrom(f); err != nil {
		return nil, fmt.Errorf("password blacklist %s: %w", path, err)
	}
	return b, nil
}

func (b *Blacklist) readFrom(r io.Reader) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := sc.Text(); !strings.HasPrefix(strings.TrimSpace(line), "#") {
			b.add(line)
		}
	}
	return sc.Err()
}

func (b *Blacklist) add(w string) {
	if w = normalizeWord(w); w != "" {
		b.words[w] = struct{}{}
	}
}

func (b *Blacklist) Contains(candidate string) bool {
	if b == nil {
		return false
	}
	_, hit := b.words[normalizeWord(candidate)]
	return hit
}

func (b *Blacklist) Len() int {
	if b == nil {
		return 0
	}
	return len(b.words)
}
