package headers

import (
	"fmt"
	"strings"
)

func readKey(origstr string, str string, separator byte) (string, string, error) {
	i := strings.IndexAny(str, "="+string(separator))
	if i < 0 || str[i] == separator {
		return "", "", fmt.Errorf("unable to read key (%v)", origstr)
	}
	return strings.ToLower(strings.TrimSpace(str[:i])), str[i+1:], nil
}

func readValue(origstr string, str string, separator byte) (string, string, error) {
	if len(str) > 0 && str[0] == '"' {
		i := strings.IndexByte(str[1:], '"')
		if i < 0 {
			return "", "", fmt.Errorf("apexes not closed (%v)", origstr)
		}
		return str[1 : i+1], str[i+2:], nil
	}

	i := strings.IndexByte(str, separator)
	if i < 0 {
		return str, "", nil
	}
	return str[:i], str[i:], nil
}

// keyValParse parses a list of key=value pairs. Keys are lower-cased.
func keyValParse(str string, separator byte) (map[string]string, error) {
	ret := make(map[string]string)
	origstr := str

	for len(str) > 0 {
		var k string
		var err error
		k, str, err = readKey(origstr, str, separator)
		if err != nil {
			return nil, err
		}

		var v string
		v, str, err = readValue(origstr, str, separator)
		if err != nil {
			return nil, err
		}

		ret[k] = v

		str = strings.TrimLeft(str, string(separator)+" ")
	}

	return ret, nil
}
