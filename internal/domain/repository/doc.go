// Package repository define las interfaces de repositorio de dominio.
//
// Estas interfaces representan contratos de negocio, independientes del
// almacenamiento subyacente (PostgreSQL, Redis, memoria).
//
// Las implementaciones concretas viven en internal/store/.
//
// Convenciones:
//   - Context siempre es el primer parámetro
//   - Errores de dominio están en errors.go
//   - El core trata cada llamada como I/O que puede fallar; los fallos se
//     propagan al boundary del pipeline como server_error, nunca se tragan.
package repository
