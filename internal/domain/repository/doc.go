// Package repository declara los contratos de persistencia del núcleo de
// auth: principals, sesiones, revocaciones y auditoría.
//
// Hay dos backends. internal/store/pg es el de producción sobre pgx;
// internal/store/memory sirve para tests y para correr en local sin base.
// Ambos deben comportarse igual ante las mismas llamadas.
//
// Un lookup vacío devuelve ErrNotFound, nunca (nil, nil).
package repository
