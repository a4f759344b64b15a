package stage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/geoknoesis/rdf-go/rdf"
	"github.com/jmylchreest/sop/internal/plan"
	"github.com/jmylchreest/sop/internal/registry"
	"github.com/jmylchreest/sop/internal/stream"
	"github.com/jmylchreest/sop/internal/term"
)

// CanonError reports a dataset that failed canonicalization, per 7.
type CanonError struct {
	Err error
}

func (e *CanonError) Error() string { return fmt.Sprintf("canonicalize: %v", e.Err) }
func (e *CanonError) Unwrap() error { return e.Err }

// Canonicalize is the sink stage. It buffers the whole input stream
// (canonicalization requires the whole graph, 5), relabels blank nodes
// to canonical identifiers with a Weisfeiler-Lehman-style color
// refinement over the quad structure (a URDNA2015-class algorithm, 4.G),
// and writes canonical N-Quads, sorted into canonical order, to
// --output/-o or stdout.
type Canonicalize struct {
	output string
}

// NewCanonicalizeConstructor returns the plan.Constructor for "canonicalize".
func NewCanonicalizeConstructor() plan.Constructor {
	return func(spec plan.Spec) (plan.Built, error) {
		out, _ := spec.Option("output")
		return &Canonicalize{output: out}, nil
	}
}

func (c *Canonicalize) Name() string        { return "canonicalize" }
func (c *Canonicalize) Role() registry.Role { return registry.RoleSink }

func (c *Canonicalize) Drain(ctx context.Context, upstream stream.Stream) error {
	quads, err := stream.Collect(upstream)
	if err != nil {
		return err
	}

	labels := canonicalBlankLabels(quads)
	out := make([]term.Quad, len(quads))
	for i, q := range quads {
		out[i] = term.Quad{
			Subject:   relabelBlank(q.Subject, labels),
			Predicate: q.Predicate,
			Object:    relabelBlank(q.Object, labels),
			Graph:     relabelBlank(q.Graph, labels),
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })

	var w io.WriteCloser
	if c.output != "" {
		f, err := os.Create(c.output)
		if err != nil {
			return &CanonError{Err: err}
		}
		w = f
	} else {
		w = nopWriteCloser{os.Stdout}
	}
	defer w.Close()

	writer, err := rdf.NewWriter(w, rdf.FormatNQuads)
	if err != nil {
		return &CanonError{Err: err}
	}
	for _, q := range out {
		stmt, err := toWireStatement(q)
		if err != nil {
			return &CanonError{Err: err}
		}
		if err := writer.Write(stmt); err != nil {
			return &CanonError{Err: err}
		}
	}
	if err := writer.Flush(); err != nil {
		return &CanonError{Err: err}
	}
	return writer.Close()
}

func relabelBlank(t term.Term, labels map[string]string) term.Term {
	switch t.Kind() {
	case term.KindBlank:
		return term.Blank(labels[t.Value()])
	case term.KindTripleTerm:
		tr := t.Triple()
		return term.TripleTerm(term.Triple{
			Subject:   relabelBlank(tr.Subject, labels),
			Predicate: relabelBlank(tr.Predicate, labels),
			Object:    relabelBlank(tr.Object, labels),
		})
	default:
		return t
	}
}

// canonicalBlankLabels computes a canonical "_:c14nN" label for every
// blank node appearing in quads, independent of the input's quad order,
// using iterative color refinement: each blank node's hash starts from
// the structure of the quads it touches (with other blank nodes replaced
// by a placeholder), then is repeatedly rehashed folding in its
// neighbors' current hashes until the partition of blank nodes by hash
// stops refining (or a round cap is hit). Nodes are then ordered by final
// hash, ties broken by their original blank label, giving a
// deterministic, idempotent relabeling. Only nodes that still share a
// hash after refinement get labels that depend on their original names.
func canonicalBlankLabels(quads []term.Quad) map[string]string {
	blanks := map[string]bool{}
	for _, q := range quads {
		collectBlanks(q.Subject, blanks)
		collectBlanks(q.Object, blanks)
		collectBlanks(q.Graph, blanks)
	}
	if len(blanks) == 0 {
		return map[string]string{}
	}

	hashes := make(map[string]string, len(blanks))
	for b := range blanks {
		hashes[b] = hashQuadsFor(b, quads, nil)
	}

	for round := 0; round < 8; round++ {
		next := make(map[string]string, len(blanks))
		for b := range blanks {
			next[b] = hashQuadsFor(b, quads, hashes)
		}
		if partitionsEqual(hashes, next) {
			hashes = next
			break
		}
		hashes = next
	}

	type entry struct{ blank, hash string }
	entries := make([]entry, 0, len(blanks))
	for b, h := range hashes {
		entries = append(entries, entry{b, h})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].hash != entries[j].hash {
			return entries[i].hash < entries[j].hash
		}
		return entries[i].blank < entries[j].blank
	})

	labels := make(map[string]string, len(entries))
	for i, e := range entries {
		labels[e.blank] = fmt.Sprintf("c14n%d", i)
	}
	return labels
}

func collectBlanks(t term.Term, into map[string]bool) {
	switch t.Kind() {
	case term.KindBlank:
		into[t.Value()] = true
	case term.KindTripleTerm:
		tr := t.Triple()
		collectBlanks(tr.Subject, into)
		collectBlanks(tr.Predicate, into)
		collectBlanks(tr.Object, into)
	}
}

// hashQuadsFor computes b's color: the sha256 of every quad touching b,
// rendered with b itself marked "_:self", other blank nodes replaced by
// their current color from neighborHashes (or a generic placeholder on
// the first round, when neighborHashes is nil), and the quad's own
// position (s/o/g) recorded so the hash is sensitive to role.
func hashQuadsFor(b string, quads []term.Quad, neighborHashes map[string]string) string {
	var rows []string
	for _, q := range quads {
		if !quadTouches(q, b) {
			continue
		}
		rows = append(rows, fmt.Sprintf("%s|%s|%s|%s",
			colorTerm(q.Subject, b, neighborHashes),
			q.Predicate.String(),
			colorTerm(q.Object, b, neighborHashes),
			colorTerm(q.Graph, b, neighborHashes),
		))
	}
	sort.Strings(rows)
	sum := sha256.Sum256([]byte(strings.Join(rows, "\n")))
	return hex.EncodeToString(sum[:])
}

func quadTouches(q term.Quad, b string) bool {
	return blankIs(q.Subject, b) || blankIs(q.Object, b) || blankIs(q.Graph, b)
}

func blankIs(t term.Term, b string) bool {
	switch t.Kind() {
	case term.KindBlank:
		return t.Value() == b
	case term.KindTripleTerm:
		tr := t.Triple()
		return blankIs(tr.Subject, b) || blankIs(tr.Predicate, b) || blankIs(tr.Object, b)
	default:
		return false
	}
}

func colorTerm(t term.Term, self string, neighborHashes map[string]string) string {
	switch t.Kind() {
	case term.KindTripleTerm:
		tr := t.Triple()
		return fmt.Sprintf("<<%s %s %s>>",
			colorTerm(tr.Subject, self, neighborHashes),
			colorTerm(tr.Predicate, self, neighborHashes),
			colorTerm(tr.Object, self, neighborHashes),
		)
	case term.KindBlank:
	default:
		return t.String()
	}
	if t.Value() == self {
		return "_:self"
	}
	if neighborHashes == nil {
		return "_:other"
	}
	return "_:" + neighborHashes[t.Value()]
}

func partitionsEqual(a, b map[string]string) bool {
	rankA := rankByHash(a)
	rankB := rankByHash(b)
	for k := range a {
		if rankA[k] != rankB[k] {
			return false
		}
	}
	return true
}

// rankByHash maps each key to the rank of its hash among all hashes
// (ties sharing a rank), so two hash assignments that differ only in
// which literal digest string was used for an equivalent partition
// still compare equal.
func rankByHash(m map[string]string) map[string]int {
	uniq := make([]string, 0, len(m))
	seen := map[string]bool{}
	for _, h := range m {
		if !seen[h] {
			seen[h] = true
			uniq = append(uniq, h)
		}
	}
	sort.Strings(uniq)
	rank := make(map[string]int, len(uniq))
	for i, h := range uniq {
		rank[h] = i
	}
	out := make(map[string]int, len(m))
	for k, h := range m {
		out[k] = rank[h]
	}
	return out
}
