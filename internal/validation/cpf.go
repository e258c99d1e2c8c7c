// Package validation содержит функции валидации входных данных.
package validation

import "unicode"

// IsValidCPF проверяет контрольные цифры CPF — идентификатора сотрудника.
// Принимает форматы "00000000000" и "000.000.000-00".
func IsValidCPF(cpf string) bool {
	digits := make([]int, 0, 11)
	for _, ch := range cpf {
		switch {
		case unicode.IsDigit(ch):
			digits = append(digits, int(ch-'0'))
		case ch == '.' || ch == '-':
		default:
			return false
		}
	}

	if len(digits) != 11 {
		return false
	}

	// CPF из одинаковых цифр проходит формулу, но недействителен.
	same := true
	for _, d := range digits[1:] {
		if d != digits[0] {
			same = false
			break
		}
	}
	if same {
		return false
	}

	return checkDigit(digits, 9) == digits[9] && checkDigit(digits, 10) == digits[10]
}

func checkDigit(digits []int, n int) int {
	sum := 0
	for i := 0; i < n; i++ {
		sum += digits[i] * (n + 1 - i)
	}

	rest := (sum * 10) % 11
	if rest == 10 {
		return 0
	}
	return rest
}

// IsValidRG проверяет, что RG посетителя состоит из разумного числа
// цифр (возможно, с разделителями). Единого национального алгоритма
// контрольной цифры у RG нет, поэтому проверяется только форма.
func IsValidRG(rg string) bool {
	n := 0
	for _, ch := range rg {
		switch {
		case unicode.IsDigit(ch):
			n++
		case ch == '.' || ch == '-':
		default:
			return false
		}
	}
	return n >= 5 && n <= 14
}
