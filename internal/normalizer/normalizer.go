// Package normalizer turns exchange and wallet exports into canonical
// transactions. Each supported source recognizes its own file signature.
package normalizer

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"bitcoin-gains/internal/logger"
	"bitcoin-gains/internal/model"
	"bitcoin-gains/internal/repository"
)

// Normalizer is implemented once per supported source.
type Normalizer interface {
	Name() string
	// Recognizes sniffs a bounded prefix of the file.
	Recognizes(path string) (bool, error)
	// Parse re-reads the file on every call.
	Parse(path string) ([]model.Transaction, error)
	// MergeGroup reconciles the records that share one logical id.
	MergeGroup(group []model.Transaction) ([]model.Transaction, error)
	// CheckComplete is called once every file has been parsed.
	CheckComplete() error
}

// Registry holds the normalizers in the order they are tried.
type Registry struct {
	list   []Normalizer
	byName map[string]Normalizer
}

func NewRegistry(normalizers ...Normalizer) *Registry {
	r := &Registry{byName: make(map[string]Normalizer)}
	for _, n := range normalizers {
		r.list = append(r.list, n)
		r.byName[n.Name()] = n
	}
	return r
}

// Default returns every supported source in priority order.
func Default(ids *model.IDGenerator, storage *repository.Storage) *Registry {
	return NewRegistry(
		NewBitstamp(ids),
		NewMtGox(ids),
		NewBitcoind(),
		NewCoinbase(ids),
		NewExternal(ids, storage),
	)
}

// Detect returns the first normalizer that recognizes path.
func (r *Registry) Detect(path string) (Normalizer, error) {
	for _, n := range r.list {
		ok, err := n.Recognizes(path)
		if err != nil {
			return nil, fmt.Errorf("sniff %s as %s: %w", path, n.Name(), err)
		}
		if ok {
			return n, nil
		}
	}
	return nil, &model.ConfigError{Path: path, Msg: "no parser recognizes this file"}
}

func (r *Registry) Lookup(name string) (Normalizer, bool) {
	n, ok := r.byName[name]
	return n, ok
}

// CheckComplete asks every normalizer whether it saw a coherent set of files.
func (r *Registry) CheckComplete() error {
	var errs []error
	for _, n := range r.list {
		if err := n.CheckComplete(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ParseAll detects and parses every file.
func (r *Registry) ParseAll(paths []string) ([]model.Transaction, error) {
	var all []model.Transaction
	for _, path := range paths {
		n, err := r.Detect(path)
		if err != nil {
			return nil, err
		}
		logger.Info("Parsing history", "file", path, "parser", n.Name())
		txs, err := n.Parse(path)
		if err != nil {
			return nil, err
		}
		logger.Debug("Parsed history", "file", path, "count", len(txs))
		all = append(all, txs...)
	}
	if err := r.CheckComplete(); err != nil {
		return nil, err
	}
	return all, nil
}

const sniffBytes = 4096

func readPrefix(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, n)
	read, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:read], nil
}

func firstLine(path string) (string, error) {
	prefix, err := readPrefix(path, sniffBytes)
	if err != nil {
		return "", err
	}
	line, _, _ := bufio.NewReader(bytes.NewReader(prefix)).ReadLine()
	return strings.TrimSpace(strings.TrimPrefix(string(line), "\ufeff")), nil
}

// single is the default merge: only singleton groups are acceptable.
func single(group []model.Transaction) ([]model.Transaction, error) {
	if len(group) == 1 {
		return group, nil
	}
	return nil, &model.MergeError{
		Source: group[0].Source,
		ID:     group[0].ID,
		Group:  group,
		Err:    fmt.Errorf("%d records share one id and this source has no merge rule", len(group)),
	}
}
