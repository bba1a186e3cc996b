package memdb

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// tokenize splits an expression into whitespace tokens with parentheses and
// commas as standalone tokens.
func tokenize(expr string) []string {
	r := strings.NewReplacer("(", " ( ", ")", " ) ", ",", " , ")
	return strings.Fields(r.Replace(expr))
}

type parser struct {
	toks []string
	pos  int
}

func (p *parser) next() (string, error) {
	if p.pos >= len(p.toks) {
		return "", fmt.Errorf("memdb: unexpected end of expression")
	}
	tok := p.toks[p.pos]
	p.pos++
	return tok, nil
}

func (p *parser) expect(want string) error {
	tok, err := p.next()
	if err != nil {
		return err
	}
	if tok != want {
		return fmt.Errorf("memdb: expected %q, got %q", want, tok)
	}
	return nil
}

func (p *parser) done() bool {
	return p.pos >= len(p.toks)
}

// evalCondition evaluates a condition, key-condition, or filter expression
// against an item. A nil item means the record does not exist.
func evalCondition(expr string, names map[string]string, values, item map[string]types.AttributeValue) (bool, error) {
	p := &parser{toks: tokenize(expr)}
	result := true

	for {
		ok, err := evalClause(p, names, values, item)
		if err != nil {
			return false, err
		}
		result = result && ok

		if p.done() {
			return result, nil
		}
		if err := p.expect("AND"); err != nil {
			return false, err
		}
	}
}

func evalClause(p *parser, names map[string]string, values, item map[string]types.AttributeValue) (bool, error) {
	tok, err := p.next()
	if err != nil {
		return false, err
	}

	switch tok {
	case "attribute_exists", "attribute_not_exists":
		if err := p.expect("("); err != nil {
			return false, err
		}
		path, err := p.next()
		if err != nil {
			return false, err
		}
		if err := p.expect(")"); err != nil {
			return false, err
		}
		_, exists := attr(item, resolveName(path, names))
		if tok == "attribute_exists" {
			return exists, nil
		}
		return !exists, nil
	}

	// tok is an attribute path.
	name := resolveName(tok, names)
	op, err := p.next()
	if err != nil {
		return false, err
	}

	switch op {
	case "=":
		ref, err := p.next()
		if err != nil {
			return false, err
		}
		want, err := resolveValue(ref, values)
		if err != nil {
			return false, err
		}
		got, ok := attr(item, name)
		return ok && attrEqual(got, want), nil

	case "BETWEEN":
		loRef, err := p.next()
		if err != nil {
			return false, err
		}
		if err := p.expect("AND"); err != nil {
			return false, err
		}
		hiRef, err := p.next()
		if err != nil {
			return false, err
		}
		lo, err := resolveValue(loRef, values)
		if err != nil {
			return false, err
		}
		hi, err := resolveValue(hiRef, values)
		if err != nil {
			return false, err
		}
		got, ok := attr(item, name)
		if !ok {
			return false, nil
		}
		return attrCmp(got, lo) >= 0 && attrCmp(got, hi) <= 0, nil

	case "IN":
		if err := p.expect("("); err != nil {
			return false, err
		}
		got, present := attr(item, name)
		match := false
		for {
			ref, err := p.next()
			if err != nil {
				return false, err
			}
			if ref == ")" {
				break
			}
			if ref == "," {
				continue
			}
			want, err := resolveValue(ref, values)
			if err != nil {
				return false, err
			}
			if present && attrEqual(got, want) {
				match = true
			}
		}
		return match, nil
	}

	return false, fmt.Errorf("memdb: unsupported operator %q", op)
}

// applyUpdate applies a SET update expression to the item in place.
// Supported clause shapes: "path = operand" and "path = operand + operand",
// where an operand is an attribute path or a value reference.
func applyUpdate(expr string, names map[string]string, values, item map[string]types.AttributeValue) error {
	toks := tokenize(expr)
	if len(toks) == 0 || toks[0] != "SET" {
		return fmt.Errorf("memdb: unsupported update expression %q", expr)
	}
	p := &parser{toks: toks, pos: 1}

	for {
		target, err := p.next()
		if err != nil {
			return err
		}
		if err := p.expect("="); err != nil {
			return err
		}
		first, err := p.next()
		if err != nil {
			return err
		}
		value, err := resolveOperand(first, names, values, item)
		if err != nil {
			return err
		}

		if !p.done() && p.toks[p.pos] == "+" {
			p.pos++
			second, err := p.next()
			if err != nil {
				return err
			}
			addend, err := resolveOperand(second, names, values, item)
			if err != nil {
				return err
			}
			value, err = addNumbers(value, addend)
			if err != nil {
				return err
			}
		}

		item[resolveName(target, names)] = value

		if p.done() {
			return nil
		}
		if err := p.expect(","); err != nil {
			return err
		}
	}
}

func resolveOperand(tok string, names map[string]string, values, item map[string]types.AttributeValue) (types.AttributeValue, error) {
	if strings.HasPrefix(tok, ":") {
		return resolveValue(tok, values)
	}
	v, ok := attr(item, resolveName(tok, names))
	if !ok {
		return nil, fmt.Errorf("memdb: operand %q not present on item", tok)
	}
	return v, nil
}

func addNumbers(a, b types.AttributeValue) (types.AttributeValue, error) {
	an, aok := a.(*types.AttributeValueMemberN)
	bn, bok := b.(*types.AttributeValueMemberN)
	if !aok || !bok {
		return nil, fmt.Errorf("memdb: addition requires numeric operands")
	}
	af, err := strconv.ParseFloat(an.Value, 64)
	if err != nil {
		return nil, err
	}
	bf, err := strconv.ParseFloat(bn.Value, 64)
	if err != nil {
		return nil, err
	}
	return &types.AttributeValueMemberN{Value: strconv.FormatFloat(af+bf, 'f', -1, 64)}, nil
}

func resolveName(tok string, names map[string]string) string {
	if strings.HasPrefix(tok, "#") {
		if name, ok := names[tok]; ok {
			return name
		}
	}
	return tok
}

func resolveValue(ref string, values map[string]types.AttributeValue) (types.AttributeValue, error) {
	v, ok := values[ref]
	if !ok {
		return nil, fmt.Errorf("memdb: unresolved value reference %q", ref)
	}
	return v, nil
}

func attr(item map[string]types.AttributeValue, name string) (types.AttributeValue, bool) {
	if item == nil {
		return nil, false
	}
	v, ok := item[name]
	return v, ok
}

func attrEqual(a, b types.AttributeValue) bool {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		return ok && av.Value == bv.Value
	case *types.AttributeValueMemberN:
		_, ok := b.(*types.AttributeValueMemberN)
		return ok && attrCmp(a, b) == 0
	case *types.AttributeValueMemberBOOL:
		bv, ok := b.(*types.AttributeValueMemberBOOL)
		return ok && av.Value == bv.Value
	}
	return false
}

// attrCmp orders two scalar attributes: numerically for numbers,
// lexicographically for strings.
func attrCmp(a, b types.AttributeValue) int {
	if an, ok := a.(*types.AttributeValueMemberN); ok {
		if bn, ok := b.(*types.AttributeValueMemberN); ok {
			af, _ := strconv.ParseFloat(an.Value, 64)
			bf, _ := strconv.ParseFloat(bn.Value, 64)
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(scalarString(a), scalarString(b))
}

// scalarString renders a scalar attribute for key building and comparison.
func scalarString(v types.AttributeValue) string {
	switch av := v.(type) {
	case *types.AttributeValueMemberS:
		return av.Value
	case *types.AttributeValueMemberN:
		return av.Value
	case *types.AttributeValueMemberBOOL:
		return strconv.FormatBool(av.Value)
	}
	return ""
}

// copyItem deep-copies an item so callers never alias stored state.
func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	if item == nil {
		return nil
	}
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = copyAttr(v)
	}
	return out
}

func copyAttr(v types.AttributeValue) types.AttributeValue {
	switch av := v.(type) {
	case *types.AttributeValueMemberM:
		inner := make(map[string]types.AttributeValue, len(av.Value))
		for k, e := range av.Value {
			inner[k] = copyAttr(e)
		}
		return &types.AttributeValueMemberM{Value: inner}
	case *types.AttributeValueMemberL:
		inner := make([]types.AttributeValue, len(av.Value))
		for i, e := range av.Value {
			inner[i] = copyAttr(e)
		}
		return &types.AttributeValueMemberL{Value: inner}
	}
	return v
}
