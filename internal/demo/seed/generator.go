package seed

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

type Customer struct {
	ID        int64
	Name      string
	Country   string
	CreatedAt time.Time
}

type Product struct {
	ID       int64
	Name     string
	Category string
	Price    float64
}

type Order struct {
	ID         int64
	CustomerID int64
	ProductID  int64
	Quantity   int
	Amount     float64
	OrderedAt  time.Time
}

type Dataset struct {
	Customers []Customer
	Products  []Product
	Orders    []Order
}

var (
	firstNames = []string{"Ada", "Alan", "Grace", "Linus", "Margaret", "Dennis", "Barbara", "Ken", "Radia", "Edsger", "Frances", "Niklaus"}
	lastNames  = []string{"Lovelace", "Turing", "Hopper", "Torvalds", "Hamilton", "Ritchie", "Liskov", "Thompson", "Perlman", "Dijkstra", "Allen", "Wirth"}
	countries  = []string{"US", "DE", "GB", "IN", "JP", "BR", "FI", "NL"}
	categories = map[string][]string{
		"books":       {"Notebook", "Field Guide", "Cookbook", "Atlas"},
		"electronics": {"Headphones", "Keyboard", "Monitor", "Charger"},
		"garden":      {"Watering Can", "Seed Kit", "Pruner", "Planter"},
		"kitchen":     {"Kettle", "Skillet", "Grinder", "Teapot"},
	}
	categoryOrder = []string{"books", "electronics", "garden", "kitchen"}
)

// Generator produces the same dataset for the same seed.
type Generator struct {
	rnd   *rand.Rand
	start time.Time
}

func NewGenerator(seed int64) *Generator {
	return &Generator{
		rnd:   rand.New(rand.NewSource(seed)),
		start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (g *Generator) Generate(customers, products, orders int) Dataset {
	data := Dataset{
		Customers: make([]Customer, 0, customers),
		Products:  make([]Product, 0, products),
		Orders:    make([]Order, 0, orders),
	}
	for i := 1; i <= customers; i++ {
		data.Customers = append(data.Customers, Customer{
			ID:        int64(i),
			Name:      pickOne(g.rnd, firstNames) + " " + pickOne(g.rnd, lastNames),
			Country:   pickOne(g.rnd, countries),
			CreatedAt: g.start.Add(time.Duration(g.rnd.Intn(180*24)) * time.Hour),
		})
	}
	for i := 1; i <= products; i++ {
		category := pickOne(g.rnd, categoryOrder)
		data.Products = append(data.Products, Product{
			ID:       int64(i),
			Name:     fmt.Sprintf("%s %d", pickOne(g.rnd, categories[category]), i),
			Category: category,
			Price:    round2(2 + g.rnd.Float64()*198),
		})
	}
	if customers == 0 || products == 0 {
		return data
	}
	for i := 1; i <= orders; i++ {
		customer := data.Customers[g.rnd.Intn(len(data.Customers))]
		product := data.Products[g.rnd.Intn(len(data.Products))]
		quantity := 1 + g.rnd.Intn(5)
		// Orders never predate the customer.
		orderedAt := customer.CreatedAt.Add(time.Duration(g.rnd.Intn(90*24*60)) * time.Minute)
		data.Orders = append(data.Orders, Order{
			ID:         int64(i),
			CustomerID: customer.ID,
			ProductID:  product.ID,
			Quantity:   quantity,
			Amount:     round2(product.Price * float64(quantity)),
			OrderedAt:  orderedAt,
		})
	}
	return data
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func pickOne(r *rand.Rand, values []string) string {
	return values[r.Intn(len(values))]
}
