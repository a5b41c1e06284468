package directory

import "time"

// SampleRecords returns the built-in dataset served when crawling yields
// nothing at all. Dependent components must never operate on an empty
// directory, so this is the floor the whole pipeline degrades to.
func SampleRecords(now time.Time) []StartupRecord {
	records := []StartupRecord{
		{
			ID:          "startup-12345",
			Name:        "EcoTech Réunion",
			Description: "Startup spécialisée dans les solutions écologiques et le développement durable à La Réunion.",
			Tags:        []string{"Écologie", "Développement durable", "Énergie renouvelable"},
			URL:         "https://ecotechreunion.com",
			Contact:     "contact@ecotechreunion.com",
			Email:       "contact@ecotechreunion.com",
			Domain:      "Écologie",
			Location:    "Saint-Denis, La Réunion",
		},
		{
			ID:          "startup-23456",
			Name:        "DigitalOcean974",
			Description: "Accompagnement à la transformation numérique des entreprises réunionnaises.",
			Tags:        []string{"Numérique", "Transformation digitale", "Conseil"},
			URL:         "https://digitalocean974.re",
			Contact:     "info@digitalocean974.re",
			Email:       "info@digitalocean974.re",
			Domain:      "Numérique",
			Location:    "Saint-Pierre, La Réunion",
		},
		{
			ID:          "startup-34567",
			Name:        "AgriTech Réunion",
			Description: "Solutions technologiques innovantes pour l'agriculture tropicale.",
			Tags:        []string{"Agriculture", "IoT", "Data Science"},
			URL:         "https://agritech-reunion.com",
			Contact:     "contact@agritech-reunion.com",
			Email:       "contact@agritech-reunion.com",
			Domain:      "Agriculture",
			Location:    "Saint-Paul, La Réunion",
		},
		{
			ID:          "startup-45678",
			Name:        "MediSanté 974",
			Description: "Plateforme de télémédecine adaptée aux spécificités de La Réunion.",
			Tags:        []string{"Santé", "E-santé", "Télémédecine"},
			URL:         "https://medisante974.re",
			Contact:     "contact@medisante974.re",
			Email:       "contact@medisante974.re",
			Domain:      "Santé",
			Location:    "Saint-Denis, La Réunion",
		},
		{
			ID:          "startup-56789",
			Name:        "TourismTech Réunion",
			Description: "Développement d'applications et services numériques pour le tourisme local.",
			Tags:        []string{"Tourisme", "Application mobile", "Expérience utilisateur"},
			URL:         "https://tourismtech.re",
			Contact:     "info@tourismtech.re",
			Email:       "info@tourismtech.re",
			Domain:      "Tourisme",
			Location:    "Saint-Gilles, La Réunion",
		},
		{
			ID:          "startup-67890",
			Name:        "CyberSécurité Océan Indien",
			Description: "Services de cybersécurité pour les entreprises de la zone Océan Indien.",
			Tags:        []string{"Cybersécurité", "Protection des données", "Audit"},
			URL:         "https://cybersecurite-oi.com",
			Contact:     "security@cybersecurite-oi.com",
			Email:       "security@cybersecurite-oi.com",
			Domain:      "Cybersécurité",
			Location:    "Le Port, La Réunion",
		},
		{
			ID:          "startup-78901",
			Name:        "FinTech 974",
			Description: "Solutions financières innovantes adaptées au contexte insulaire.",
			Tags:        []string{"Finance", "Blockchain", "Paiement mobile"},
			URL:         "https://fintech974.com",
			Contact:     "contact@fintech974.com",
			Email:       "contact@fintech974.com",
			Domain:      "Finance",
			Location:    "Saint-Denis, La Réunion",
		},
		{
			ID:          "startup-89012",
			Name:        "LogisticPlus Réunion",
			Description: "Optimisation de la chaîne logistique pour les territoires insulaires.",
			Tags:        []string{"Logistique", "Supply Chain", "Optimisation"},
			URL:         "https://logisticplus.re",
			Contact:     "info@logisticplus.re",
			Email:       "info@logisticplus.re",
			Domain:      "Logistique",
			Location:    "Le Port, La Réunion",
		},
		{
			ID:          "startup-90123",
			Name:        "EduTech Océan Indien",
			Description: "Plateformes éducatives adaptées aux spécificités culturelles de l'Océan Indien.",
			Tags:        []string{"Éducation", "E-learning", "Contenu local"},
			URL:         "https://edutech-oi.com",
			Contact:     "contact@edutech-oi.com",
			Email:       "contact@edutech-oi.com",
			Domain:      "Éducation",
			Location:    "Saint-André, La Réunion",
		},
		{
			ID:          "startup-01234",
			Name:        "RenewEnergy Réunion",
			Description: "Développement de solutions énergétiques renouvelables adaptées au climat tropical.",
			Tags:        []string{"Énergie", "Solaire", "Transition énergétique"},
			URL:         "https://renewenergy-reunion.com",
			Contact:     "info@renewenergy-reunion.com",
			Email:       "info@renewenergy-reunion.com",
			Domain:      "Énergie",
			Location:    "Saint-Pierre, La Réunion",
		},
	}
	for i := range records {
		records[i].LastUpdated = now
	}
	return records
}
