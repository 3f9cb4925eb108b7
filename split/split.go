// Package split fetches one bin of a previously computed subset so that the
// subset can be executed by parallel workers.
package split

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/perfgo/subsetter/model"
	"github.com/perfgo/subsetter/runner"
)

// Client is the part of the service client the orchestrator needs.
type Client interface {
	Slice(ctx context.Context, subsettingID int64, req *model.SliceRequest) (*model.SubsetResponse, error)
}

// ParseSubsetID accepts the "subset/<id>" line printed by subset --split
// as well as a bare id.
func ParseSubsetID(s string) (int64, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(s), "subset/")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, model.Usagef("invalid --subset-id %q: expected subset/<id>", s)
	}
	return id, nil
}

// ParseBin parses "<index>/<count>" with 1 <= index <= count.
func ParseBin(s string) (model.Bin, error) {
	i, n, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return model.Bin{}, model.Usagef("invalid --bin %q: expected <index>/<count>, e.g. 1/3", s)
	}
	index, err1 := strconv.Atoi(i)
	count, err2 := strconv.Atoi(n)
	if err1 != nil || err2 != nil {
		return model.Bin{}, model.Usagef("invalid --bin %q: expected <index>/<count>, e.g. 1/3", s)
	}
	bin := model.Bin{Index: index, Count: count}
	if err := validateBin(bin); err != nil {
		return model.Bin{}, err
	}
	return bin, nil
}

func validateBin(b model.Bin) error {
	if b.Count < 1 || b.Index < 1 || b.Index > b.Count {
		return model.Usagef("invalid bin %d/%d: the index must be between 1 and the count", b.Index, b.Count)
	}
	return nil
}

// LoadSameBin reads same-bin files. Every file is one group; every
// non-empty line of it names a test of that group.
func LoadSameBin(adapter runner.Adapter, files []string) ([][]model.TestPath, error) {
	if len(files) == 0 {
		return nil, nil
	}
	f, ok := adapter.(runner.SameBinFormatter)
	if !ok {
		return nil, model.Usagef("--same-bin is not supported by the %s runner, supported runners: %s",
			adapter.Name(), strings.Join(runner.SupportsSameBin(), ", "))
	}

	groups := make([][]model.TestPath, 0, len(files))
	for _, file := range files {
		group, err := readGroup(file, f)
		if err != nil {
			return nil, err
		}
		if len(group) > 0 {
			groups = append(groups, group)
		}
	}
	return groups, nil
}

func readGroup(file string, f runner.SameBinFormatter) ([]model.TestPath, error) {
	fh, err := os.Open(file)
	if err != nil {
		return nil, model.Usagef("failed to open same-bin file: %v", err)
	}
	defer fh.Close()

	var group []model.TestPath
	s := bufio.NewScanner(fh)
	for s.Scan() {
		if name := strings.TrimSpace(s.Text()); name != "" {
			group = append(group, f.SameBin(name))
		}
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", file, err)
	}
	return group, nil
}

// Request addresses one bin of a subset.
type Request struct {
	SubsettingID int64
	Bin          model.Bin
	SameBin      [][]model.TestPath
}

// Result holds the tests of the bin and everything else.
type Result struct {
	Subset []model.TestPath
	Rest   []model.TestPath
}

type Orchestrator struct {
	logger zerolog.Logger
	client Client
}

func New(logger zerolog.Logger, c Client) *Orchestrator {
	return &Orchestrator{logger: logger, client: c}
}

// Split fetches the bin. Unlike subset there is no fallback: once a subset
// is partitioned, running all tests in every bin would be wrong.
func (o *Orchestrator) Split(ctx context.Context, req Request) (*Result, error) {
	if err := validateBin(req.Bin); err != nil {
		return nil, err
	}

	o.logger.Debug().
		Int64("subsetting_id", req.SubsettingID).
		Int("index", req.Bin.Index).
		Int("count", req.Bin.Count).
		Int("same_bin_groups", len(req.SameBin)).
		Msg("Requesting bin")

	resp, err := o.client.Slice(ctx, req.SubsettingID, &model.SliceRequest{Bin: req.Bin, SameBin: req.SameBin})
	if err != nil {
		return nil, fmt.Errorf("failed to split subset %d: %w", req.SubsettingID, err)
	}

	res := &Result{Subset: resp.TestPaths, Rest: resp.Rest}
	if err := CheckSameBin(req.SameBin, res.Subset, res.Rest); err != nil {
		return nil, err
	}
	return res, nil
}

// CheckSameBin verifies that no group has members on both sides of the
// split.
func CheckSameBin(groups [][]model.TestPath, subset, rest []model.TestPath) error {
	for _, group := range groups {
		var in, out model.TestPath
		for _, entry := range group {
			if in == nil && matchesAny(entry, subset) {
				in = entry
			}
			if out == nil && matchesAny(entry, rest) {
				out = entry
			}
		}
		if in != nil && out != nil {
			return fmt.Errorf("same-bin group was split by the service: %s is in this bin but %s is not", in, out)
		}
	}
	return nil
}

func matchesAny(entry model.TestPath, paths []model.TestPath) bool {
	for _, p := range paths {
		if matches(entry, p) {
			return true
		}
	}
	return false
}

// matches reports whether every component of entry occurs in path, so that
// a class entry matches all test cases of the class.
func matches(entry, path model.TestPath) bool {
	for _, c := range entry {
		found := false
		for _, pc := range path {
			if pc.Type == c.Type && pc.Name == c.Name {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
