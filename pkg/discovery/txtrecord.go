package discovery

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ngsi-go/ngsi/pkg/version"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeBrokerTXT creates the TXT records a broker advertises.
func EncodeBrokerTXT(info *BrokerInfo) TXTRecordMap {
	txt := TXTRecordMap{TXTKeyVersion: info.Version}
	if info.Path != "" && info.Path != "/" {
		txt[TXTKeyPath] = info.Path
	}
	if info.TLS {
		txt[TXTKeyTLS] = "1"
	}
	if info.Service != "" {
		txt[TXTKeyService] = info.Service
	}
	return txt
}

// DecodeBrokerTXT parses a broker's TXT records.
func DecodeBrokerTXT(txt TXTRecordMap) (*BrokerInfo, error) {
	v, ok := txt[TXTKeyVersion]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyVersion)
	}
	if _, err := version.Parse(v); err != nil {
		return nil, fmt.Errorf("%w: %s=%q", ErrInvalidTXTRecord, TXTKeyVersion, v)
	}

	info := &BrokerInfo{Version: v, Path: "/"}
	if p, ok := txt[TXTKeyPath]; ok && p != "" {
		if !strings.HasPrefix(p, "/") {
			return nil, fmt.Errorf("%w: %s=%q", ErrInvalidTXTRecord, TXTKeyPath, p)
		}
		info.Path = strings.TrimRight(p, "/")
		if info.Path == "" {
			info.Path = "/"
		}
	}
	switch t := txt[TXTKeyTLS]; t {
	case "", "0":
	case "1":
		info.TLS = true
	default:
		return nil, fmt.Errorf("%w: %s=%q", ErrInvalidTXTRecord, TXTKeyTLS, t)
	}
	info.Service = txt[TXTKeyService]
	return info, nil
}

// TXTRecordsToStrings converts a TXTRecordMap to sorted "key=value" strings.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, k+"="+v)
	}
	sort.Strings(result)
	return result
}

// StringsToTXTRecords parses "key=value" strings into a TXTRecordMap. A key
// without "=" is stored with an empty value.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		k, v, found := strings.Cut(s, "=")
		if found || k != "" {
			txt[k] = v
		}
	}
	return txt
}
