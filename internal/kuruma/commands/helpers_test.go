package commands_test

import "strconv"

func strconv64(id int64) string {
	return strconv.FormatInt(id, 10)
}
