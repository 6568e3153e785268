package awssign

import (
	"reflect"
	"testing"
)

func TestNormalizeURIPathComponent(t *testing.T) {
	result, err := NormalizeURIPathComponent("ሴ")
	if err != nil {
		t.Errorf("NormalizeURIPathComponent should not have failed for ሴ\n")
	}

	if result != "%E1%88%B4" {
		t.Errorf("ሴ should have translated to %%E1%%88%%B4: %#v\n", result)
	}
}

func TestNormalizeURIPathComponentCases(t *testing.T) {
	cases := []struct {
		input    string
		expected string
	}{
		{"simple", "simple"},
		{"key-._~", "key-._~"},
		{"%2a", "%2A"},
		{"%41", "A"},
		{"a+b", "a%20b"},
		{"a b", "a%20b"},
		{"100%25", "100%25"},
	}

	for _, c := range cases {
		result, err := NormalizeURIPathComponent(c.input)
		if err != nil {
			t.Errorf("NormalizeURIPathComponent failed for %#v: %#v", c.input, err)
		} else if result != c.expected {
			t.Errorf("NormalizeURIPathComponent(%#v): expected %#v, got %#v",
				c.input, c.expected, result)
		}
	}
}

func TestNormalizeURIPathComponentInvalid(t *testing.T) {
	for _, input := range []string{"%", "%2", "%zz", "abc%"} {
		if _, err := NormalizeURIPathComponent(input); err == nil {
			t.Errorf("NormalizeURIPathComponent should have failed for %#v", input)
		}
	}
}

func TestNormalizeQueryParameters(t *testing.T) {
	cases := []struct {
		input    string
		expected map[string][]string
	}{
		{"", map[string][]string{}},
		{"a=1", map[string][]string{"a": {"1"}}},
		{"Foo=bar&Foo=baz", map[string][]string{"Foo": {"bar", "baz"}}},
		{"empty=&flag", map[string][]string{"empty": {""}, "flag": {""}}},
		{"&&a=1", map[string][]string{"a": {"1"}}},
		{"a%20b=c%2Fd", map[string][]string{"a b": {"c/d"}}},
		{"plus=a+b", map[string][]string{"plus": {"a b"}}},
		{"token=abc%2Bdef", map[string][]string{"token": {"abc+def"}}},
	}

	for _, c := range cases {
		result, err := NormalizeQueryParameters(c.input)
		if err != nil {
			t.Errorf("NormalizeQueryParameters failed for %#v: %#v", c.input, err)
		} else if !reflect.DeepEqual(result, c.expected) {
			t.Errorf("NormalizeQueryParameters(%#v): expected %#v, got %#v",
				c.input, c.expected, result)
		}
	}
}

func TestNormalizeQueryParametersInvalid(t *testing.T) {
	for _, input := range []string{"a=%", "a=%2", "a=%zz", "%gg=1"} {
		if _, err := NormalizeQueryParameters(input); err == nil {
			t.Errorf("NormalizeQueryParameters should have failed for %#v", input)
		}
	}
}

func TestCanonicalizeURIPath(t *testing.T) {
	cases := []struct {
		input    string
		expected string
	}{
		{"", "/"},
		{"/", "/"},
		{"/documents and settings/", "/documents%20and%20settings/"},
		{"/a/b/./c", "/a/b/c"},
		{"/a/b/../c", "/a/c"},
		{"//example//", "/example/"},
		{"/example/.", "/example/"},
		{"/%41bc", "/Abc"},
		{"/a/./", "/a/"},
	}

	for _, c := range cases {
		result, err := CanonicalizeURIPath(c.input)
		if err != nil {
			t.Errorf("CanonicalizeURIPath failed for %#v: %#v", c.input, err)
		} else if result != c.expected {
			t.Errorf("CanonicalizeURIPath(%#v): expected %#v, got %#v",
				c.input, c.expected, result)
		}
	}
}

func TestCanonicalizeURIPathInvalid(t *testing.T) {
	for _, input := range []string{"relative/path", "/..", "/a/../../b"} {
		if _, err := CanonicalizeURIPath(input); err == nil {
			t.Errorf("CanonicalizeURIPath should have failed for %#v", input)
		}
	}
}

func TestEscapeRFC3986(t *testing.T) {
	cases := []struct {
		input    string
		expected string
	}{
		{"value", "value"},
		{"a b", "a%20b"},
		{"a+b", "a%2Bb"},
		{"100%", "100%25"},
		{"AKID/20130524/us-east-1/s3/aws4_request", "AKID%2F20130524%2Fus-east-1%2Fs3%2Faws4_request"},
		{"-._~", "-._~"},
		{"ሴ", "%E1%88%B4"},
	}

	for _, c := range cases {
		if result := EscapeRFC3986(c.input); result != c.expected {
			t.Errorf("EscapeRFC3986(%#v): expected %#v, got %#v",
				c.input, c.expected, result)
		}
	}
}
