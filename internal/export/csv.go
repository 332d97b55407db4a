package export

import (
	"bytes"
	"strings"

	"github.com/ryabkov82/table-merger/internal/table"
)

// CSV заключает в кавычки каждое значение без исключения, удваивая
// внутренние кавычки. Строки разделяются '\n', без завершающего перевода.
func CSV(d table.Dataset) []byte {
	var b bytes.Buffer
	for i, row := range d {
		if i > 0 {
			b.WriteByte('\n')
		}
		for j, cell := range row {
			if j > 0 {
				b.WriteByte(',')
			}
			b.WriteByte('"')
			b.WriteString(strings.ReplaceAll(cell.String(), `"`, `""`))
			b.WriteByte('"')
		}
	}
	return b.Bytes()
}
