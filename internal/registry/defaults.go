package registry

import "price-tracker/internal/models"

// Built-in catalog of Spanish supermarkets, used when no markets file is
// configured. Carrefour and Mercadona expose per-city storefronts; the rest
// are scraped once globally.
func defaultMarkets() []models.Market {
	return []models.Market{
		{ID: "carrefour", Name: "Carrefour", CityScoped: true, MaxCategories: 4, MaxProductsPerRun: 40, DefaultTimeSlot: "09:00"},
		{ID: "mercadona", Name: "Mercadona", CityScoped: true, MaxCategories: 4, MaxProductsPerRun: 30, DefaultTimeSlot: "10:30"},
		{ID: "lidl", Name: "Lidl", CityScoped: false, MaxCategories: 2, MaxProductsPerRun: 80, DefaultTimeSlot: "12:00"},
		{ID: "dia", Name: "Dia", CityScoped: false, MaxCategories: 2, MaxProductsPerRun: 60, DefaultTimeSlot: "13:30"},
		{ID: "consum", Name: "Consum", CityScoped: false, MaxCategories: 2, MaxProductsPerRun: 70, DefaultTimeSlot: "15:00"},
		{ID: "elcorte", Name: "El Corte Inglés", CityScoped: false, MaxCategories: 3, MaxProductsPerRun: 100, DefaultTimeSlot: "16:30"},
		{ID: "condisline", Name: "Condisline", CityScoped: false, MaxCategories: 3, MaxProductsPerRun: 50, DefaultTimeSlot: "18:00"},
		{ID: "bonpreu", Name: "Bonpreu", CityScoped: false, MaxCategories: 2, MaxProductsPerRun: 60, DefaultTimeSlot: "19:30"},
		{ID: "alcampo", Name: "Alcampo", CityScoped: false, MaxCategories: 2, MaxProductsPerRun: 70, DefaultTimeSlot: "21:00"},
		{ID: "bonarea", Name: "BonÀrea", CityScoped: false, MaxCategories: 2, MaxProductsPerRun: 50, DefaultTimeSlot: "07:30"},
		{ID: "aldi", Name: "Aldi", CityScoped: false, MaxCategories: 2, MaxProductsPerRun: 60, DefaultTimeSlot: "06:00"},
	}
}

func defaultCities() []models.City {
	return []models.City{
		{ID: "madrid", Name: "Madrid", Region: "Comunidad de Madrid", Lat: 40.4168, Lng: -3.7038, Population: 3223334},
		{ID: "barcelona", Name: "Barcelona", Region: "Cataluña", Lat: 41.3874, Lng: 2.1686, Population: 1620343},
		{ID: "valencia", Name: "Valencia", Region: "Comunidad Valenciana", Lat: 39.4699, Lng: -0.3763, Population: 791413},
		{ID: "sevilla", Name: "Sevilla", Region: "Andalucía", Lat: 37.3891, Lng: -5.9845, Population: 688711},
		{ID: "zaragoza", Name: "Zaragoza", Region: "Aragón", Lat: 41.6488, Lng: -0.8891, Population: 674997},
		{ID: "malaga", Name: "Málaga", Region: "Andalucía", Lat: 36.7213, Lng: -4.4214, Population: 578460},
		{ID: "murcia", Name: "Murcia", Region: "Región de Murcia", Lat: 37.9922, Lng: -1.1307, Population: 453258},
		{ID: "palma", Name: "Palma", Region: "Islas Baleares", Lat: 39.5696, Lng: 2.6502, Population: 416065},
		{ID: "las-palmas", Name: "Las Palmas", Region: "Canarias", Lat: 28.1235, Lng: -15.4363, Population: 379925},
		{ID: "bilbao", Name: "Bilbao", Region: "País Vasco", Lat: 43.2630, Lng: -2.9350, Population: 345821},
		{ID: "alicante", Name: "Alicante", Region: "Comunidad Valenciana", Lat: 38.3452, Lng: -0.4810, Population: 334887},
		{ID: "cordoba", Name: "Córdoba", Region: "Andalucía", Lat: 37.8882, Lng: -4.7794, Population: 325708},
		{ID: "valladolid", Name: "Valladolid", Region: "Castilla y León", Lat: 41.6523, Lng: -4.7245, Population: 298412},
	}
}
