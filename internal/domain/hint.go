package domain

import (
	"fmt"
	"strings"
)

// HintKind is the top-level shape a format hint declares.
type HintKind string

const (
	HintInt    HintKind = "int"
	HintFloat  HintKind = "float"
	HintObject HintKind = "object"
	HintList   HintKind = "list"
)

// FieldType is a primitive type inside an object-shaped hint.
type FieldType string

const (
	FieldStr   FieldType = "str"
	FieldInt   FieldType = "int"
	FieldFloat FieldType = "float"
)

// Field is one declared field of an object or list-of-objects hint.
type Field struct {
	Name string
	Type FieldType
}

// FormatHint is the parsed form of a question's format_hint string.
// The grammar is: int | float | {field:type, ...} | list[{field:type, ...}].
type FormatHint struct {
	Kind   HintKind
	Fields []Field
	Raw    string
}

// ParseFormatHint parses a format hint string. Unknown or malformed hints
// return ErrBadFormatHint; callers treat those as free-form output rather
// than failing the question.
func ParseFormatHint(s string) (FormatHint, error) {
	raw := strings.TrimSpace(s)
	switch {
	case raw == "int":
		return FormatHint{Kind: HintInt, Raw: raw}, nil
	case raw == "float":
		return FormatHint{Kind: HintFloat, Raw: raw}, nil
	case strings.HasPrefix(raw, "list[") && strings.HasSuffix(raw, "]"):
		inner := strings.TrimSpace(raw[len("list[") : len(raw)-1])
		fields, err := parseFieldSpec(inner)
		if err != nil {
			return FormatHint{Raw: raw}, err
		}
		return FormatHint{Kind: HintList, Fields: fields, Raw: raw}, nil
	case strings.HasPrefix(raw, "{") && strings.HasSuffix(raw, "}"):
		fields, err := parseFieldSpec(raw)
		if err != nil {
			return FormatHint{Raw: raw}, err
		}
		return FormatHint{Kind: HintObject, Fields: fields, Raw: raw}, nil
	}
	return FormatHint{Raw: raw}, WrapCopilotError(ErrBadFormatHint.Code, ErrBadFormatHint.Message, fmt.Errorf("%q", s))
}

// parseFieldSpec parses "{category:str, quantity:int}" into its fields.
func parseFieldSpec(s string) ([]Field, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		return nil, WrapCopilotError(ErrBadFormatHint.Code, ErrBadFormatHint.Message, fmt.Errorf("object spec %q", s))
	}
	body := strings.TrimSpace(s[1 : len(s)-1])
	if body == "" {
		return nil, WrapCopilotError(ErrBadFormatHint.Code, ErrBadFormatHint.Message, fmt.Errorf("empty object spec"))
	}

	var fields []Field
	for _, part := range strings.Split(body, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, typ, ok := strings.Cut(part, ":")
		if !ok {
			return nil, WrapCopilotError(ErrBadFormatHint.Code, ErrBadFormatHint.Message, fmt.Errorf("field %q has no type", part))
		}
		ft := FieldType(strings.TrimSpace(typ))
		switch ft {
		case FieldStr, FieldInt, FieldFloat:
		default:
			return nil, WrapCopilotError(ErrBadFormatHint.Code, ErrBadFormatHint.Message, fmt.Errorf("field %q has unknown type %q", name, typ))
		}
		fields = append(fields, Field{Name: strings.TrimSpace(name), Type: ft})
	}
	if len(fields) == 0 {
		return nil, WrapCopilotError(ErrBadFormatHint.Code, ErrBadFormatHint.Message, fmt.Errorf("no fields in %q", s))
	}
	return fields, nil
}
