// Package tail reads persisted JSON Lines records back into generic maps.
package tail

import (
	"bufio"
	"fmt"
	"os"

	"github.com/valyala/fastjson"
)

var parsers fastjson.ParserPool

// ParseLine decodes one JSONL record into a generic map.
func ParseLine(line []byte) (map[string]interface{}, error) {
	p := parsers.Get()
	defer parsers.Put(p)

	v, err := p.ParseBytes(line)
	if err != nil {
		return nil, fmt.Errorf("parse record: %w", err)
	}
	obj, err := v.Object()
	if err != nil {
		return nil, fmt.Errorf("record is not a JSON object: %w", err)
	}

	rec := make(map[string]interface{}, obj.Len())
	obj.Visit(func(key []byte, val *fastjson.Value) {
		rec[string(key)] = valueToAny(val)
	})
	return rec, nil
}

// ReadFile parses every non-empty line of a JSONL file. Lines that fail to
// parse are skipped; a file written through the rotating sink only hits that
// on a torn final line after a crash.
func ReadFile(path string) ([]map[string]interface{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []map[string]interface{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		rec, err := ParseLine(line)
		if err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, scanner.Err()
}

// CountRecords counts the parseable records in a JSONL file.
func CountRecords(path string) (int, error) {
	records, err := ReadFile(path)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

func valueToAny(v *fastjson.Value) interface{} {
	switch v.Type() {
	case fastjson.TypeString:
		b, _ := v.StringBytes()
		return string(b)
	case fastjson.TypeNumber:
		f, _ := v.Float64()
		return f
	case fastjson.TypeTrue:
		return true
	case fastjson.TypeFalse:
		return false
	case fastjson.TypeNull:
		return nil
	case fastjson.TypeObject:
		obj, _ := v.Object()
		m := make(map[string]interface{}, obj.Len())
		obj.Visit(func(key []byte, val *fastjson.Value) {
			m[string(key)] = valueToAny(val)
		})
		return m
	case fastjson.TypeArray:
		vals, _ := v.Array()
		arr := make([]interface{}, 0, len(vals))
		for _, item := range vals {
			arr = append(arr, valueToAny(item))
		}
		return arr
	default:
		return nil
	}
}
