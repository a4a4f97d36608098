package table

import "strings"

// ColumnTypes maps a column name to the kind seen in the first row
type ColumnTypes map[string]Kind

// Bindings are the default column choices for a chart recipe
type Bindings struct {
	Time     string
	Numeric  string
	Category string
	Numeric2 string
	Numeric3 string
}

// Profile assigns a kind to each column by inspecting the first row only.
// Columns missing from that row are left out; later rows are not re-checked.
func Profile(headers []string, rows []Row) ColumnTypes {
	types := ColumnTypes{}
	if len(rows) == 0 {
		return types
	}

	sample := rows[0]
	for _, h := range headers {
		v, ok := sample[h]
		if !ok || v.IsNull() {
			continue
		}
		switch v.Kind {
		case KindNumber:
			types[h] = KindNumber
		case KindDate:
			types[h] = KindDate
		default:
			types[h] = KindString
		}
	}
	return types
}

// Keys returns the profiled columns in header order
func (ct ColumnTypes) Keys(headers []string) []string {
	keys := make([]string, 0, len(ct))
	for _, h := range headers {
		if _, ok := ct[h]; ok {
			keys = append(keys, h)
		}
	}
	return keys
}

// SelectColumns picks default bindings with a fixed priority:
//
//	time     = first date column, else first column named like year/date,
//	           else first category column, else first column
//	numeric  = first number column, else second column, else first column
//	category = first string column, else first column
func SelectColumns(headers []string, types ColumnTypes) Bindings {
	keys := types.Keys(headers)

	var dates, nums, cats []string
	for _, k := range keys {
		switch types[k] {
		case KindDate:
			dates = append(dates, k)
		case KindNumber:
			nums = append(nums, k)
		default:
			cats = append(cats, k)
		}
	}

	timeCol := first(dates)
	if timeCol == "" {
		for _, k := range keys {
			lk := strings.ToLower(k)
			if strings.Contains(lk, "year") || strings.Contains(lk, "date") {
				timeCol = k
				break
			}
		}
	}

	return Bindings{
		Time:     coalesce(timeCol, first(cats), at(keys, 0)),
		Numeric:  coalesce(at(nums, 0), at(keys, 1), at(keys, 0)),
		Category: coalesce(first(cats), at(keys, 0)),
		Numeric2: coalesce(at(nums, 1), at(keys, 2), at(keys, 1)),
		Numeric3: coalesce(at(nums, 2), at(keys, 3), at(keys, 2)),
	}
}

func first(s []string) string { return at(s, 0) }

func at(s []string, i int) string {
	if i < len(s) {
		return s[i]
	}
	return ""
}

func coalesce(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
