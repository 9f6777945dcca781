package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/lerlerchan/ExamOps-Orchestrator/model"
	"github.com/lerlerchan/ExamOps-Orchestrator/rules"
)

// Token holds the values captured from a numbering prefix.
type Token struct {
	Number int
	Letter string // lower-case letter for level 1
	Roman  string // lower-case roman numeral for level 2
	Upper  string // capital letter for level 3
}

// Matcher maps one raw numbering form to a canonical level. Resolve receives
// the submatches of Pattern and the block's current indentation level, and
// returns the level, the captured token and, when the form could belong to
// another level, the reason it is ambiguous. ok=false rejects the match and
// lets the next matcher try.
type Matcher struct {
	Name    string
	Pattern *regexp.Regexp
	Resolve func(m []string, indent int) (level int, tok Token, ambiguous string, ok bool)
}

// Match is the outcome of running the matcher table over one line.
type Match struct {
	Matcher   string
	Level     int
	Token     string // canonical rendered token
	Raw       string // matched prefix as it appeared
	Remainder string
	Ambiguous string
}

// Render returns the canonical line: token, one space, remainder.
func (m Match) Render() string {
	if m.Remainder == "" {
		return m.Token
	}
	return m.Token + " " + m.Remainder
}

// headRunes bounds how much of a line is folded before matching; a
// numbering token never extends further.
const headRunes = 16

// reRoman accepts lower-case roman numerals 1-39.
var reRoman = regexp.MustCompile(`^x{0,3}(ix|iv|v?i{0,3})$`)

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func fixed(level int, build func(m []string) Token) func([]string, int) (int, Token, string, bool) {
	return func(m []string, _ int) (int, Token, string, bool) {
		return level, build(m), "", true
	}
}

// DefaultMatchers returns the ordered numbering matcher table. Order is
// precedence: compound forms come before the simple forms they start with.
func DefaultMatchers() []Matcher {
	return []Matcher{
		{
			Name:    "compact",
			Pattern: regexp.MustCompile(`^[Qq](\d{1,3})\s+([a-z])\s+([ivx]+)[.)]?(?:\s+|$)`),
			Resolve: func(m []string, _ int) (int, Token, string, bool) {
				if !reRoman.MatchString(m[3]) {
					return 0, Token{}, "", false
				}
				return 2, Token{Number: atoi(m[1]), Letter: m[2], Roman: m[3]}, "", true
			},
		},
		{
			Name:    "dotted-compound",
			Pattern: regexp.MustCompile(`^(\d{1,3})\.([a-z])\.([ivx]+)[.)]?(?:\s+|$)`),
			Resolve: func(m []string, _ int) (int, Token, string, bool) {
				if !reRoman.MatchString(m[3]) {
					return 0, Token{}, "", false
				}
				return 2, Token{Number: atoi(m[1]), Letter: m[2], Roman: m[3]}, "", true
			},
		},
		{
			Name:    "dotted-part",
			Pattern: regexp.MustCompile(`^(\d{1,3})\.([a-z])[.)]?(?:\s+|$)`),
			Resolve: fixed(1, func(m []string) Token {
				return Token{Number: atoi(m[1]), Letter: m[2]}
			}),
		},
		{
			Name:    "question",
			Pattern: regexp.MustCompile(`^[Qq](\d{1,3})[.):]?(?:\s+|$)`),
			Resolve: fixed(0, func(m []string) Token {
				return Token{Number: atoi(m[1])}
			}),
		},
		{
			Name:    "number-letter",
			Pattern: regexp.MustCompile(`^[Qq]?(\d{1,3})([a-z])[.)](?:\s+|$)`),
			Resolve: fixed(1, func(m []string) Token {
				return Token{Number: atoi(m[1]), Letter: m[2]}
			}),
		},
		{
			Name:    "bare-number",
			Pattern: regexp.MustCompile(`^(\d{1,3})[.)](?:\s+|$)`),
			Resolve: func(m []string, _ int) (int, Token, string, bool) {
				return 0, Token{Number: atoi(m[1])}, "bare number could be a question or a sub-question; question level assumed", true
			},
		},
		{
			Name:    "roman",
			Pattern: regexp.MustCompile(`^\(?([ivx]+)\)(?:\s+|$)`),
			Resolve: func(m []string, indent int) (int, Token, string, bool) {
				r := m[1]
				if !reRoman.MatchString(r) {
					return 0, Token{}, "", false
				}
				if len(r) > 1 {
					return 2, Token{Roman: r}, "", true
				}
				if indent == 1 {
					return 1, Token{Letter: r}, "single letter could be a roman numeral; kept as sub-question letter at its current level", true
				}
				return 2, Token{Roman: r}, "single letter could be a sub-question letter; read as roman numeral", true
			},
		},
		{
			Name:    "letter",
			Pattern: regexp.MustCompile(`^\(?([a-z])\)(?:\s+|$)`),
			Resolve: fixed(1, func(m []string) Token {
				return Token{Letter: m[1]}
			}),
		},
		{
			Name:    "capital",
			Pattern: regexp.MustCompile(`^\(?([A-Z])\)(?:\s+|$)`),
			Resolve: fixed(3, func(m []string) Token {
				return Token{Upper: m[1]}
			}),
		},
	}
}

// Numbering recognizes heterogeneous numbering tokens and rewrites them to
// the canonical form of their level. Each block is evaluated on its own.
type Numbering struct {
	matchers []Matcher
}

// NewNumbering creates a numbering normalizer with DefaultMatchers.
func NewNumbering() *Numbering {
	return &Numbering{matchers: DefaultMatchers()}
}

// NewNumberingWithMatchers creates a numbering normalizer with a custom
// matcher table.
func NewNumberingWithMatchers(matchers []Matcher) *Numbering {
	return &Numbering{matchers: matchers}
}

// Name implements Normalizer.
func (n *Numbering) Name() string { return "numbering" }

// Matchers returns the matcher table in precedence order.
func (n *Numbering) Matchers() []Matcher {
	return n.matchers
}

// Match runs the matcher table over text. The first matcher that accepts
// wins.
func (n *Numbering) Match(text string, indent int, rs *rules.RuleSet) (Match, bool) {
	line := strings.TrimLeftFunc(text, unicode.IsSpace)
	if line == "" {
		return Match{}, false
	}
	folded, offset := foldHead(line)
	for _, mt := range n.matchers {
		sub := mt.Pattern.FindStringSubmatch(folded)
		if sub == nil {
			continue
		}
		level, tok, ambiguous, ok := mt.Resolve(sub, indent)
		if !ok {
			continue
		}
		return Match{
			Matcher:   mt.Name,
			Level:     level,
			Token:     renderToken(rs.NumberingFormat.ForLevel(level), tok),
			Raw:       strings.TrimSpace(line[:offset(len(sub[0]))]),
			Remainder: strings.TrimLeftFunc(line[offset(len(sub[0])):], unicode.IsSpace),
			Ambiguous: ambiguous,
		}, true
	}
	return Match{}, false
}

// Normalize implements Normalizer.
func (n *Numbering) Normalize(blocks []model.Block, rs *rules.RuleSet) ([]model.Block, []model.Change) {
	out, changes, _ := n.NormalizeWithNotes(blocks, rs)
	return out, changes
}

// NormalizeWithNotes normalizes numbering and also returns the ambiguity
// notes recorded for tokens that could belong to more than one level.
//
// A block whose text changes yields a numbering change. A block whose text
// is already canonical but sits at the wrong level yields an indentation
// change.
func (n *Numbering) NormalizeWithNotes(blocks []model.Block, rs *rules.RuleSet) ([]model.Block, []model.Change, []model.Ambiguity) {
	out := model.CloneBlocks(blocks)
	var (
		changes []model.Change
		notes   []model.Ambiguity
	)
	for i := range out {
		b := &out[i]
		if b.Protected || b.IsBlank() {
			continue
		}
		m, ok := n.Match(b.Text, b.IndentLevel, rs)
		if !ok {
			continue
		}
		if m.Ambiguous != "" {
			notes = append(notes, model.Ambiguity{
				BlockIndex: i,
				Token:      m.Raw,
				Level:      m.Level,
				Reason:     m.Ambiguous,
			})
		}

		text := m.Render()
		switch {
		case text != b.Text:
			changes = append(changes, model.Change{
				BlockIndex: i,
				Category:   model.CategoryNumbering,
				Before:     b.Text,
				After:      text,
			})
		case m.Level != b.IndentLevel:
			changes = append(changes, model.Change{
				BlockIndex: i,
				Category:   model.CategoryIndentation,
				Before:     levelLabel(b.IndentLevel, rs),
				After:      levelLabel(m.Level, rs),
			})
		}
		b.Text = text
		b.IndentLevel = m.Level
	}
	return out, changes, notes
}

func renderToken(format string, tok Token) string {
	return strings.NewReplacer(
		rules.PlaceholderNumber, strconv.Itoa(tok.Number),
		rules.PlaceholderLetter, tok.Letter,
		rules.PlaceholderRoman, tok.Roman,
		rules.PlaceholderUpper, tok.Upper,
	).Replace(format)
}

func levelLabel(level int, rs *rules.RuleSet) string {
	return fmt.Sprintf("level %d (%.1f cm)", level, rs.IndentCm(level))
}

// foldHead applies NFKC rune by rune to the first few runes of s so that
// full-width digits and brackets are matched like their ASCII forms. The
// returned offset maps a byte length of the folded string back to a byte
// length of s; matching runs on the folded string while the rest of the
// line is always taken from s unchanged.
func foldHead(s string) (string, func(int) int) {
	var (
		sb      strings.Builder
		folded  []int // folded length at each rune boundary
		origEnd []int // byte length of s at the same boundary
		i       int
	)
	for n := 0; i < len(s) && n < headRunes; n++ {
		r, size := utf8.DecodeRuneInString(s[i:])
		sb.WriteString(norm.NFKC.String(string(r)))
		i += size
		folded = append(folded, sb.Len())
		origEnd = append(origEnd, i)
	}
	headLen := sb.Len()
	sb.WriteString(s[i:])

	offset := func(n int) int {
		if n >= headLen {
			return n - headLen + i
		}
		// A match ending inside the expansion of one rune covers that rune.
		for k, f := range folded {
			if f >= n {
				return origEnd[k]
			}
		}
		return i
	}
	return sb.String(), offset
}
