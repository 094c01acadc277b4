// Package catalogseed loads product catalogs and writes them to the store.
package catalogseed

import (
	"github.com/google/uuid"

	"github.com/kailas-cloud/shopsight/internal/domain"
)

// idNamespace derives stable product ids from titles, so reseeding is idempotent.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://shopsight.local/catalog"))

// ProductID returns the deterministic id for a product title.
func ProductID(title string) string {
	return uuid.NewSHA1(idNamespace, []byte(title)).String()
}

func dims(w, h, d float64) (width, height, depth *float64) {
	return &w, &h, &d
}

func demoProduct(title, description, category, typ string, price, w, h, d float64) domain.Product {
	p := domain.Product{
		ID:          ProductID(title),
		Title:       title,
		Description: description,
		Category:    category,
		Type:        typ,
		Price:       price,
	}
	p.Width, p.Height, p.Depth = dims(w, h, d)
	return p
}

// Demo returns the shipped furniture catalog.
func Demo() []domain.Product {
	return []domain.Product{
		demoProduct("Sofá Minimalista Velvet",
			"Sofá de 3 lugares com revestimento em veludo cinza, pés de madeira clara e design escandinavo.",
			"Sala de Estar", "Sofá", 2499.00, 210, 85, 90),
		demoProduct("Cadeira Eames Wood",
			"Cadeira icônica com assento em polipropileno branco e base em madeira e metal.",
			"Sala de Jantar", "Cadeira", 189.90, 46, 82, 53),
		demoProduct("Mesa de Jantar Industrial Rio",
			"Mesa retangular para 6 pessoas, tampo em madeira maciça e estrutura metálica preta.",
			"Sala de Jantar", "Mesa", 1250.00, 160, 75, 90),
		demoProduct("Poltrona Lounge Couro",
			"Poltrona giratória revestida em couro legítimo marrom com base em alumínio.",
			"Sala de Estar", "Poltrona", 3200.00, 80, 95, 85),
		demoProduct("Estante de Livros Modular Branca",
			"Estante com 5 prateleiras em MDF branco, ideal para escritórios ou salas de estar.",
			"Escritório", "Estante", 450.00, 80, 180, 30),
		demoProduct("Cama Queen Estofada Bege",
			"Cama box queen size com cabeceira estofada em linho bege e estrutura reforçada.",
			"Quarto", "Cama", 1800.00, 158, 110, 198),
		demoProduct("Mesa de Centro Rústica Pinus",
			"Mesa de centro baixa em madeira de pinus tratada com acabamento em verniz fosco.",
			"Sala de Estar", "Mesa de Centro", 320.00, 90, 35, 60),
		demoProduct("Cômoda de Quarto 4 Gavetas Preta",
			"Cômoda moderna com puxadores embutidos e gavetas com corrediças telescópicas.",
			"Quarto", "Cômoda", 780.00, 90, 100, 45),
		demoProduct("Aparador Contemporâneo Espelhado",
			"Aparador para hall de entrada com acabamento em espelho e pés palito.",
			"Hall de Entrada", "Aparador", 1100.00, 120, 80, 40),
		demoProduct("Banqueta Alta de Cozinha Metal",
			"Banqueta industrial em aço carbono com pintura epóxi amarela, ideal para bancadas.",
			"Cozinha", "Banqueta", 215.00, 40, 75, 40),
	}
}
