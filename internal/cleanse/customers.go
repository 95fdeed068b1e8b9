package cleanse

import (
	"fleximart-etl/internal/models"
	"fleximart-etl/internal/normalize"
	"fleximart-etl/internal/report"
)

// Customers turns raw customer rows into load candidates.
//
// Steps run in a fixed order: mandatory-field filter, email lowercasing,
// first-occurrence dedup by email, phone normalization, then registration
// date parsing. Dedup runs before date parsing, so a first occurrence with
// an unparseable date removes later rows for the same email too.
func Customers(rows []models.RawCustomer) Result[models.Customer] {
	m := report.New()
	m.Add(CustomersRead, int64(len(rows)))
	m.Add(CustomersDroppedMissing, 0)
	m.Add(CustomersDuplicates, 0)
	m.Add(CustomersPhoneUnrepresentable, 0)
	m.Add(CustomersDroppedInvalidDate, 0)

	seen := make(map[string]struct{}, len(rows))
	out := make([]models.Customer, 0, len(rows))

	for _, raw := range rows {
		raw = raw.Trimmed()
		if !hasRequired(raw) {
			m.Inc(CustomersDroppedMissing)
			continue
		}

		email := normalize.Email(raw.Email)
		if _, dup := seen[email]; dup {
			m.Inc(CustomersDuplicates)
			continue
		}
		seen[email] = struct{}{}

		var phone *string
		if raw.Phone != "" {
			if p, ok := normalize.Phone(raw.Phone); ok {
				phone = &p
			} else {
				m.Inc(CustomersPhoneUnrepresentable)
			}
		}

		registered, ok := normalize.Date(raw.RegistrationDate)
		if !ok {
			m.Inc(CustomersDroppedInvalidDate)
			continue
		}

		var city *string
		if c := raw.City; c != "" {
			city = &c
		}

		out = append(out, models.Customer{
			FirstName:        raw.FirstName,
			LastName:         raw.LastName,
			Email:            email,
			Phone:            phone,
			City:             city,
			RegistrationDate: registered,
		})
	}

	return Result[models.Customer]{Rows: out, Metrics: m}
}
