package table

// Dataset таблица в виде массива строк; строка 0 заголовок.
type Dataset [][]Scalar

// Header возвращает строку заголовка или nil для пустой таблицы
func (d Dataset) Header() []Scalar {
	if len(d) == 0 {
		return nil
	}
	return d[0]
}

// RowCount количество строк данных без заголовка
func (d Dataset) RowCount() int {
	if len(d) == 0 {
		return 0
	}
	return len(d) - 1
}

// ColumnCount ширина заголовка
func (d Dataset) ColumnCount() int {
	return len(d.Header())
}

func (d Dataset) IsEmpty() bool { return len(d) == 0 }

// StringRows возвращает все ячейки в текстовом виде
func (d Dataset) StringRows() [][]string {
	out := make([][]string, len(d))
	for i, row := range d {
		out[i] = make([]string, len(row))
		for j, cell := range row {
			out[i][j] = cell.String()
		}
	}
	return out
}
