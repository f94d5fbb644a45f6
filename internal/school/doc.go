// Package school implements the role-scoped domain operations: subjects and
// their teacher assignment, grade recording by teachers, grade listings for
// students and account approval by admins.
//
// Every teacher operation is scoped to the subjects assigned to that
// teacher. A grade is identified by its (subject, student, number) triple,
// which is unique.
package school
