package validate

import (
	"errors"
)

// Validate brazilian individual taxpayer number (CPF)
// Number must be exactly 11 digits without punctuation, last two digits are check digits
func CPF(number string) error {
	if len(number) != 11 {
		return errors.New("cpf must contain exactly 11 digits")
	}

	digits := make([]int, 0, len(number))
	for i := 0; i < len(number); i++ {
		n := number[i]
		if n < '0' || n > '9' {
			return errors.New("cpf contains invalid characters")
		}
		digits = append(digits, int(n-'0'))
	}

	// Numbers like 000.000.000-00 or 111.111.111-11 pass the check digits test but are not issued
	repeated := true
	for _, d := range digits[1:] {
		if d != digits[0] {
			repeated = false
			break
		}
	}
	if repeated {
		return errors.New("cpf must not consist of the same digit")
	}

	if CPFCheckDigit(digits[:9]) != digits[9] || CPFCheckDigit(digits[:10]) != digits[10] {
		return errors.New("cpf check digits are not valid")
	}

	return nil
}

// Calculate next CPF check digit for the given prefix (9 or 10 digits)
func CPFCheckDigit(prefix []int) int {
	sum := 0
	weight := len(prefix) + 1
	for _, d := range prefix {
		sum += d * weight
		weight--
	}

	rest := (sum * 10) % 11
	if rest == 10 {
		return 0
	}
	return rest
}

const maxAccountNumberLength = 20

// Account number is 1 to 20 digits
func AccountNumber(number string) error {
	if number == "" || len(number) > maxAccountNumberLength {
		return errors.New("account number must contain 1 to 20 digits")
	}

	for i := 0; i < len(number); i++ {
		if number[i] < '0' || number[i] > '9' {
			return errors.New("account number contains invalid characters")
		}
	}

	return nil
}
