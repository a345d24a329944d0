package builtin

import (
	"fmt"
	"sort"
	"strings"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/getmockd/mockresolver/pkg/template"
)

// fakerKinds maps faker kind names to generators.
var fakerKinds = map[string]func(*gofakeit.Faker) any{
	// Person
	"name":      func(f *gofakeit.Faker) any { return f.Name() },
	"firstName": func(f *gofakeit.Faker) any { return f.FirstName() },
	"lastName":  func(f *gofakeit.Faker) any { return f.LastName() },
	"gender":    func(f *gofakeit.Faker) any { return f.Gender() },
	"ssn":       func(f *gofakeit.Faker) any { return f.SSN() },

	// Contact
	"email": func(f *gofakeit.Faker) any { return f.Email() },
	"phone": func(f *gofakeit.Faker) any { return f.Phone() },

	// Address
	"address":   func(f *gofakeit.Faker) any { return f.Address().Address },
	"street":    func(f *gofakeit.Faker) any { return f.Street() },
	"city":      func(f *gofakeit.Faker) any { return f.City() },
	"state":     func(f *gofakeit.Faker) any { return f.State() },
	"country":   func(f *gofakeit.Faker) any { return f.Country() },
	"zipCode":   func(f *gofakeit.Faker) any { return f.Zip() },
	"latitude":  func(f *gofakeit.Faker) any { return f.Latitude() },
	"longitude": func(f *gofakeit.Faker) any { return f.Longitude() },

	// Company
	"company":  func(f *gofakeit.Faker) any { return f.Company() },
	"jobTitle": func(f *gofakeit.Faker) any { return f.JobTitle() },

	// Internet
	"url":        func(f *gofakeit.Faker) any { return f.URL() },
	"domainName": func(f *gofakeit.Faker) any { return f.DomainName() },
	"username":   func(f *gofakeit.Faker) any { return f.Username() },
	"ipv4":       func(f *gofakeit.Faker) any { return f.IPv4Address() },
	"ipv6":       func(f *gofakeit.Faker) any { return f.IPv6Address() },
	"mac":        func(f *gofakeit.Faker) any { return f.MacAddress() },
	"userAgent":  func(f *gofakeit.Faker) any { return f.UserAgent() },

	// Payment
	"creditCard":     func(f *gofakeit.Faker) any { return f.CreditCardNumber(nil) },
	"creditCardType": func(f *gofakeit.Faker) any { return f.CreditCardType() },
	"currency":       func(f *gofakeit.Faker) any { return f.Currency().Short },
	"price":          func(f *gofakeit.Faker) any { return f.Price(1, 1000) },

	// Text
	"word":      func(f *gofakeit.Faker) any { return f.Word() },
	"sentence":  func(f *gofakeit.Faker) any { return f.Sentence(5) },
	"paragraph": func(f *gofakeit.Faker) any { return f.Paragraph(3, 3, 10, " ") },
	"buzzWord":  func(f *gofakeit.Faker) any { return f.BuzzWord() },
	"color":     func(f *gofakeit.Faker) any { return f.Color() },

	// Date
	"date":     func(f *gofakeit.Faker) any { return f.Date().Format("2006-01-02") },
	"datetime": func(f *gofakeit.Faker) any { return f.Date().Format("2006-01-02T15:04:05Z07:00") },
	"year":     func(f *gofakeit.Faker) any { return f.Year() },
}

// FakerKinds returns the supported faker kinds in sorted order.
func FakerKinds() []string {
	kinds := make([]string, 0, len(fakerKinds))
	for k := range fakerKinds {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

func fakerFuncs() []template.FunctionSpec {
	specs := []template.FunctionSpec{
		spec("faker", 1, 1, template.KindVolatile, funcFaker,
			"Realistic fake value of the given kind: "+strings.Join(FakerKinds(), ", ")+".",
			"${faker(email)}", param("kind", "string", "faker kind")),
	}
	for _, kind := range FakerKinds() {
		gen := fakerKinds[kind]
		specs = append(specs, spec("faker."+kind, 0, 0, template.KindVolatile,
			func(ctx *template.Context, _ []template.Value) (template.Value, error) {
				return gen(newFaker(ctx)), nil
			},
			fmt.Sprintf("Fake %s, same as faker(%s).", kind, kind), "${faker."+kind+"}"))
	}
	return specs
}

func funcFaker(ctx *template.Context, args []template.Value) (template.Value, error) {
	kind := strings.TrimSpace(str(args[0]))
	gen, ok := fakerKinds[kind]
	if !ok {
		return nil, fmt.Errorf("unknown faker kind %q", kind)
	}
	return gen(newFaker(ctx)), nil
}

// newFaker returns a faker seeded from the context RNG so seeded contexts
// produce reproducible data.
func newFaker(ctx *template.Context) *gofakeit.Faker {
	return gofakeit.New(ctx.Uint64())
}
